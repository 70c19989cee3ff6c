package main

import (
	"context"
	"fmt"
	"os"

	"github.com/david/grantscout/internal/db"
	"github.com/david/grantscout/internal/planner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the funding plan: critical-path documents, scenarios, and readiness",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPlan(cmd)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().Int("target", 0, "funding target in dollars (default: profile funding target)")
}

func runPlan(cmd *cobra.Command) error {
	ctx := context.Background()

	pool, err := db.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	target, _ := cmd.Flags().GetInt("target")
	if target == 0 {
		p, err := store.GetProfile(ctx)
		if err != nil {
			return err
		}
		target = p.FundingTarget
	}

	opps, err := store.ListPipeline(ctx, false)
	if err != nil {
		return err
	}
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		return err
	}

	plan := planner.BuildPlan(opps, docs, target)

	fmt.Println("Critical path (finish these documents first):")
	cp := table.NewWriter()
	cp.SetOutputMirror(os.Stdout)
	cp.AppendHeader(table.Row{"Document", "Status", "Unlocks", "Opportunities"})
	for _, action := range plan.CriticalPath {
		cp.AppendRow(table.Row{
			action.Document.Name,
			action.Document.Status,
			fmt.Sprintf("$%d", action.UnlockValue),
			action.OpportunityCount,
		})
	}
	cp.Render()

	fmt.Println("\nScenarios:")
	sc := table.NewWriter()
	sc.SetOutputMirror(os.Stdout)
	sc.AppendHeader(table.Row{"Scenario", "Opportunities", "Total Value", "Coverage", "Open Requirements"})
	for _, s := range plan.Scenarios {
		sc.AppendRow(table.Row{
			s.Name,
			len(s.OpportunityIDs),
			fmt.Sprintf("$%d", s.TotalValue),
			fmt.Sprintf("%.0f%%", s.Coverage),
			s.OpenRequirements,
		})
	}
	sc.Render()

	fmt.Println("\nReadiness:")
	rd := table.NewWriter()
	rd.SetOutputMirror(os.Stdout)
	rd.AppendHeader(table.Row{"Title", "Stage", "Fit", "Readiness", "Docs"})
	for _, r := range plan.Readiness {
		rd.AppendRow(table.Row{
			r.Opportunity.Title,
			r.Opportunity.Stage,
			r.Opportunity.FitScore,
			fmt.Sprintf("%.0f%%", r.Readiness),
			fmt.Sprintf("%d/%d", r.Done, r.Total),
		})
	}
	rd.Render()

	return nil
}
