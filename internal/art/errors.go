package art

import (
	"errors"
	"strings"
)

// Sentinel errors for source-image shape problems. They are reported before
// canonicalisation commits; nothing is mutated when one is returned.
var (
	ErrInputTooSmall      = errors.New("source image is smaller than 100 pixels on its short side")
	ErrInputTooLarge      = errors.New("source image is larger than 4000 pixels on its long side")
	ErrInputAspectExtreme = errors.New("source image aspect ratio is outside [1/3, 3]")
)

// Pin placement errors.
var (
	ErrInvalidPinCount  = errors.New("pin count must be between 3 and 1000")
	ErrInvalidImageSize = errors.New("image size must be between 100 and 2000")
)

// ErrResourceExhaustion is returned instead of allocating a line cache that
// would exceed the configured memory budget. Callers should treat it as a
// parameter problem, not a transient failure.
var ErrResourceExhaustion = errors.New("line cache would exceed the memory budget")

// ValidationError reports parameters outside their documented ranges.
// It carries the individual messages produced by the validation predicate.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid parameters: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}
