package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/david/grantscout/internal/db"
	"github.com/david/grantscout/internal/logger"
	"github.com/david/grantscout/internal/profile"
	"github.com/david/grantscout/internal/search"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a discovery scan against the configured providers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScan(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntP("tier", "t", 0, "limit scan to terms at or below this tier (0 = all)")
	scanCmd.Flags().Bool("include-known", false, "include opportunities already tracked in the pipeline")
	scanCmd.Flags().Duration("timeout", 30*time.Second, "per provider call timeout")
}

func runScan(cmd *cobra.Command) error {
	ctx := context.Background()

	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	pool, err := db.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	p, err := store.GetProfile(ctx)
	if err != nil {
		return err
	}
	compiler, err := profile.NewCompiler()
	if err != nil {
		return err
	}
	derived := compiler.Compile(p.Tags, p.Sectors)

	registry, err := search.LoadRegistry("")
	if err != nil {
		return err
	}
	providers := search.BuildProviders(registry, zl)
	orch := search.NewOrchestrator(providers, zl)

	var known map[string]bool
	includeKnown, _ := cmd.Flags().GetBool("include-known")
	if !includeKnown {
		known, err = store.KnownKeys(ctx)
		if err != nil {
			return err
		}
	}

	tier, _ := cmd.Flags().GetInt("tier")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	result, err := orch.Scan(ctx, search.ScanRequest{
		Terms:     derived.SearchTerms,
		Weights:   derived.Weights,
		TierLimit: tier,
		KnownKeys: known,
		Timeout:   timeout,
		Progress: func(done, total int) {
			zl.Debug("scan progress", zap.Int("done", done), zap.Int("total", total))
		},
	})
	if err != nil && result == nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Fit", "Label", "Title", "Agency", "Amount", "Closes", "Provider"})
	for _, opp := range result.Opportunities {
		closes := "rolling"
		if opp.CloseDate != nil {
			closes = opp.CloseDate.Format("2006-01-02")
		}
		t.AppendRow(table.Row{opp.FitScore, opp.FitLabel, opp.Title, opp.AgencyName, opp.AmountRaw, closes, opp.Provider})
	}
	t.Render()

	if len(result.Errors) > 0 {
		fmt.Printf("\n%d provider call(s) failed:\n", len(result.Errors))
		for _, pe := range result.Errors {
			fmt.Printf("  %s (%q): %s\n", pe.Provider, pe.Term, pe.Message)
		}
	}
	if result.Partial {
		fmt.Printf("\nScan interrupted after %d/%d calls; results are partial.\n", result.CallsDone, result.CallsTotal)
	}
	if len(result.Opportunities) == 0 {
		fmt.Println("\nNo new opportunities found. Try broadening your profile tags or raising the tier limit.")
	}
	return nil
}
