package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/david/grantscout/internal/db"
	"github.com/david/grantscout/internal/planner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Show the prioritized next actions for the pipeline",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runActions()
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}

func runActions() error {
	ctx := context.Background()

	pool, err := db.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	opps, err := store.ListPipeline(ctx, false)
	if err != nil {
		return err
	}
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	contacts, err := store.ListContacts(ctx)
	if err != nil {
		return err
	}

	actions := planner.NextActions(time.Now().UTC(), opps, docs, contacts)
	if len(actions) == 0 {
		fmt.Println("Nothing urgent. The pipeline is in good shape.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Priority", "Kind", "Action", "Detail", "View"})
	for _, a := range actions {
		t.AppendRow(table.Row{a.Priority, a.Kind, a.Title, a.Detail, a.TargetView})
	}
	t.Render()

	return nil
}
