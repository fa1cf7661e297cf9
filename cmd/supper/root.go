package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caat/supper/internal/calendar"
	"github.com/caat/supper/internal/config"
	"github.com/caat/supper/internal/plan"
	"github.com/caat/supper/internal/seating"
	"github.com/caat/supper/internal/sync"
	"github.com/spf13/cobra"
)

const summaryDate = "Mon 02/01/2006"

var (
	cfgFile string
	output  string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "supper",
	Short: "Create the weekly office seating plan",
	Long: `supper reads the shared out-of-office calendar for the current working
week (or next week at the weekend) and writes a CSV with one column per
weekday, listing who is in the office on each day.

The output path may contain strftime blocks such as "{:%Y-%m-%d}".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debug)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cmd, time.Now())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging")
	rootCmd.Flags().StringVarP(&output, "output", "o", "Seating Plan.csv", "output CSV path")
}

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// run builds the plan for the week containing now.
func run(ctx context.Context, cmd *cobra.Command, now time.Time) error {
	// Checked before signing in so a bad pattern fails without network access.
	path, err := seating.FormatPath(output, now)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	syncer, err := sync.NewSyncer(ctx, cfg)
	if err != nil {
		return err
	}

	week := plan.Week(now)
	slog.Debug("planning week", "start", week.Start, "end", week.End)

	events, err := syncer.Sync(ctx, calendar.NewQuery(week.Start, cfg.OOOEmail))
	if err != nil {
		return err
	}

	absences := plan.Aggregate(events, week, cfg.OOOEmail, slog.Default())
	for i, name := range plan.DayNames {
		slog.Debug("out of office", "day", name, "people", absences.Names(i))
	}

	if err := seating.WriteCSV(path, absences, cfg.Users); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created CSV seating plan for week %s to %s at %s\n",
		week.Start.Format(summaryDate), week.Day(plan.Days-1).Format(summaryDate), abs)
	return nil
}
