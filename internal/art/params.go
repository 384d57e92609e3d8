package art

import "math"

// Params configures a single solver run. The record is treated as immutable
// once handed to Generate.
type Params struct {
	Pins         int     `json:"pins"`         // pins on the hoop circle, [3, 1000]
	Lines        int     `json:"lines"`        // thread segments to place, >= 1
	LineWeight   int     `json:"lineWeight"`   // darkness removed per line pixel, [1, 255]
	MinDistance  int     `json:"minDistance"`  // chord-index exclusion around the current pin, [1, pins/2)
	ImgSize      int     `json:"imgSize"`      // canonical square side in pixels, [100, 2000]
	HoopDiameter float64 `json:"hoopDiameter"` // physical hoop diameter, scales thread length only
}

// DefaultParams returns the reference settings.
func DefaultParams() Params {
	return Params{
		Pins:         300,
		Lines:        4000,
		LineWeight:   20,
		MinDistance:  20,
		ImgSize:      500,
		HoopDiameter: 0.6,
	}
}

// ParamInput is the raw, untyped form of Params as it arrives from JSON
// bodies or parsed flags. Fields are float64 so integerness itself is part
// of validation.
type ParamInput struct {
	Pins         float64 `json:"pins"`
	Lines        float64 `json:"lines"`
	LineWeight   float64 `json:"lineWeight"`
	MinDistance  float64 `json:"minDistance"`
	ImgSize      float64 `json:"imgSize"`
	HoopDiameter float64 `json:"hoopDiameter"`
}

// Input converts typed parameters back to their raw form, mostly for
// re-validation at host boundaries.
func (p Params) Input() ParamInput {
	return ParamInput{
		Pins:         float64(p.Pins),
		Lines:        float64(p.Lines),
		LineWeight:   float64(p.LineWeight),
		MinDistance:  float64(p.MinDistance),
		ImgSize:      float64(p.ImgSize),
		HoopDiameter: p.HoopDiameter,
	}
}

// Validation is the result of the pure parameter predicate.
type Validation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

func isInteger(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Validate checks every field against its documented range without
// allocating any solver state. The returned messages are stable strings
// that hosts surface verbatim.
func (in ParamInput) Validate() Validation {
	var errs []string

	if !isInteger(in.Pins) {
		errs = append(errs, "Number of pins must be an integer")
	} else if in.Pins < 3 {
		errs = append(errs, "Number of pins must be at least 3")
	} else if in.Pins > 1000 {
		errs = append(errs, "Number of pins should not exceed 1000 for performance reasons")
	}

	if !isInteger(in.Lines) {
		errs = append(errs, "Number of lines must be an integer")
	} else if in.Lines < 1 {
		errs = append(errs, "Number of lines must be at least 1")
	}

	if !isInteger(in.LineWeight) {
		errs = append(errs, "Line weight must be an integer")
	} else if in.LineWeight < 1 || in.LineWeight > 255 {
		errs = append(errs, "Line weight must be between 1 and 255")
	}

	if !isInteger(in.ImgSize) {
		errs = append(errs, "Image size must be an integer")
	} else if in.ImgSize < 100 {
		errs = append(errs, "Image size must be at least 100 pixels")
	} else if in.ImgSize > 2000 {
		errs = append(errs, "Image size should not exceed 2000 pixels for performance reasons")
	}

	if !isInteger(in.MinDistance) {
		errs = append(errs, "Minimum distance must be an integer")
	} else if in.MinDistance < 1 {
		errs = append(errs, "Minimum distance must be at least 1")
	} else if isInteger(in.Pins) && in.Pins >= 3 && in.MinDistance >= in.Pins/2 {
		errs = append(errs, "Minimum distance must be less than half the number of pins")
	}

	if !(in.HoopDiameter > 0) {
		errs = append(errs, "Hoop diameter must be positive")
	}

	return Validation{IsValid: len(errs) == 0, Errors: errs}
}

// Params converts validated raw input into the typed record. A failed
// validation is returned as a *ValidationError and the zero Params.
func (in ParamInput) Params() (Params, error) {
	v := in.Validate()
	if !v.IsValid {
		return Params{}, &ValidationError{Messages: v.Errors}
	}
	return Params{
		Pins:         int(in.Pins),
		Lines:        int(in.Lines),
		LineWeight:   int(in.LineWeight),
		MinDistance:  int(in.MinDistance),
		ImgSize:      int(in.ImgSize),
		HoopDiameter: in.HoopDiameter,
	}, nil
}
