package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmbp/licitaflix/internal/db"
	"github.com/dmbp/licitaflix/internal/logger"
	"github.com/dmbp/licitaflix/internal/search"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a search: one profile, a whole category, or every daily profile",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("profile", "p", "", "profile id to search for")
	runCmd.Flags().StringP("category", "c", "", "category id, runs every active profile in it")
	runCmd.Flags().BoolP("today", "t", false, "run every profile flagged for the daily sweep")
	runCmd.Flags().Int("days", 0, "lookback window in days (default 7)")

	viper.BindPFlag("days", runCmd.Flags().Lookup("days"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	logger.Info("starting licitaflix", zap.String("version", version))

	pool, err := db.Connect(ctx)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		logger.Fatal("applying migrations", zap.Error(err))
	}

	reg, err := search.LoadRegistry()
	if err != nil {
		logger.Fatal("loading source registry", zap.Error(err))
	}

	store := db.NewStore(pool)
	agg := search.NewAggregator(logger,
		search.NewComprasGovClient(reg, logger),
		search.NewPNCPClient(reg, logger),
	)
	engine := search.NewEngine(store, agg, logger)

	days := viper.GetInt("days")
	progress := func(message string, fraction float64) {
		logger.Debug(message, zap.Float64("progress", fraction))
	}

	profileFlag := cmd.Flag("profile").Value.String()
	categoryFlag := cmd.Flag("category").Value.String()
	today := cmd.Flag("today").Value.String() == "true"

	switch {
	case profileFlag != "":
		id, err := uuid.Parse(profileFlag)
		if err != nil {
			logger.Fatal("invalid profile id", zap.String("profile", profileFlag))
		}

		profile, err := store.GetProfile(ctx, id)
		if err != nil {
			logger.Fatal("loading profile", zap.Error(err))
		}

		result, err := engine.RunForProfile(ctx, *profile, days, progress)
		if err != nil {
			logger.Fatal("profile run failed", zap.Error(err))
		}

		printBatch(search.BatchResult{
			TotalMatched: result.Matched,
			TotalNew:     result.New,
			Profiles:     []search.ProfileResult{{Profile: profile.Name, RunResult: result}},
		})

	case categoryFlag != "":
		id, err := uuid.Parse(categoryFlag)
		if err != nil {
			logger.Fatal("invalid category id", zap.String("category", categoryFlag))
		}

		batch, err := engine.RunForCategory(ctx, id, days, progress)
		if err != nil {
			logger.Fatal("category run failed", zap.Error(err))
		}
		printBatch(batch)

	case today:
		batch, err := engine.RunToday(ctx, days, progress)
		if err != nil {
			logger.Fatal("daily run failed", zap.Error(err))
		}
		printBatch(batch)

	default:
		logger.Fatal("nothing to do", zap.String("hint", "pass --profile, --category or --today"))
	}
}

func printBatch(batch search.BatchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Profile", "Fetched", "Terms", "Matched", "New", "Error"})

	for _, p := range batch.Profiles {
		t.AppendRow(table.Row{p.Profile, p.Fetched, p.TermsUsed, p.Matched, p.New, p.Err})
	}
	t.AppendFooter(table.Row{"TOTAL", "", "", batch.TotalMatched, batch.TotalNew, ""})
	t.Render()

	fmt.Printf("\n%d matched, %d new across %d profiles\n", batch.TotalMatched, batch.TotalNew, len(batch.Profiles))
}
