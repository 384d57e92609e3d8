package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjzll/stringart/internal/store"
)

var plansDataDir string

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage persisted plans",
	Long:  `Lists, shows and deletes thread plans persisted by the server.`,
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all persisted plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		planStore, err := store.NewFSStore(plansDataDir)
		if err != nil {
			return fmt.Errorf("failed to open plan store: %w", err)
		}

		infos, err := planStore.ListPlans()
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}

		if len(infos) == 0 {
			fmt.Println("No plans found")
			return nil
		}

		fmt.Printf("%-38s %-6s %-12s %-10s %-8s %s\n", "JOB", "PINS", "LINES", "THREAD", "PARTIAL", "IMAGE")
		for _, info := range infos {
			fmt.Printf("%-38s %-6d %5d/%-6d %-10.2f %-8t %s\n",
				info.JobID, info.Pins, info.LinesDrawn, info.Lines,
				info.ThreadLength, info.Partial, info.ImagePath)
		}
		return nil
	},
}

var plansShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Print a persisted plan as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planStore, err := store.NewFSStore(plansDataDir)
		if err != nil {
			return fmt.Errorf("failed to open plan store: %w", err)
		}

		plan, err := planStore.LoadPlan(args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("plan not found: %s", args[0])
			}
			return fmt.Errorf("failed to load plan: %w", err)
		}

		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format plan: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var plansDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a persisted plan and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planStore, err := store.NewFSStore(plansDataDir)
		if err != nil {
			return fmt.Errorf("failed to open plan store: %w", err)
		}

		if err := planStore.DeletePlan(args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("plan not found: %s", args[0])
			}
			return fmt.Errorf("failed to delete plan: %w", err)
		}

		fmt.Printf("Deleted plan %s\n", args[0])
		return nil
	},
}

var (
	pruneKeep   int
	pruneMaxAge int
)

var plansPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old persisted plans",
	Long:  `Deletes plans beyond a kept count or older than a maximum age in days.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneKeep <= 0 && pruneMaxAge <= 0 {
			return fmt.Errorf("specify --keep and/or --max-age")
		}

		planStore, err := store.NewFSStore(plansDataDir)
		if err != nil {
			return fmt.Errorf("failed to open plan store: %w", err)
		}

		infos, err := planStore.ListPlans()
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}

		toDelete := selectPlansForDeletion(infos, pruneKeep, pruneMaxAge)
		for _, info := range toDelete {
			if err := planStore.DeletePlan(info.JobID); err != nil {
				return fmt.Errorf("failed to delete plan %s: %w", info.JobID, err)
			}
			fmt.Printf("Deleted plan %s\n", info.JobID)
		}

		fmt.Printf("Pruned %d of %d plans\n", len(toDelete), len(infos))
		return nil
	},
}

// selectPlansForDeletion picks plans to prune: any older than maxAgeDays,
// plus everything beyond the keepCount newest. Zero disables a criterion.
func selectPlansForDeletion(infos []store.PlanInfo, keepCount, maxAgeDays int) []store.PlanInfo {
	sorted := append([]store.PlanInfo(nil), infos...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var cutoff time.Time
	if maxAgeDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -maxAgeDays)
	}

	var toDelete []store.PlanInfo
	for i, info := range sorted {
		tooMany := keepCount > 0 && i >= keepCount
		tooOld := maxAgeDays > 0 && info.Timestamp.Before(cutoff)
		if tooMany || tooOld {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

func init() {
	plansCmd.PersistentFlags().StringVar(&plansDataDir, "data", "./data", "Plan store directory")
	plansPruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "Keep only the N newest plans (0 = no limit)")
	plansPruneCmd.Flags().IntVar(&pruneMaxAge, "max-age", 0, "Delete plans older than N days (0 = no limit)")
	plansCmd.AddCommand(plansPruneCmd)
	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansShowCmd)
	plansCmd.AddCommand(plansDeleteCmd)
	rootCmd.AddCommand(plansCmd)
}
