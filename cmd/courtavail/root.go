package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"courtavail/internal/config"
	"courtavail/internal/feed"
	"courtavail/internal/filter"
	appLog "courtavail/internal/log"
	"courtavail/internal/metrics"
	"courtavail/internal/refresh"
	"courtavail/internal/report"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

const defaultConfigPath = "/etc/courtavail/config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "courtavail",
		Short:         "Court availability from a facility's public event calendar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newOnceCmd(&configPath))
	root.AddCommand(newParseCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "courtavail %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

// app is the wired set of components shared by the subcommands.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	builder *report.Builder
	store   *refresh.Store
	metrics *metrics.Metrics
	runner  *refresh.Runner
}

// loadApp reads and validates the config and wires every component except
// the HTTP server.
func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	hours, err := cfg.WeeklyHours()
	if err != nil {
		return nil, err
	}

	secondary := make([]filter.Secondary, 0, len(cfg.Resource.Secondary))
	for _, s := range cfg.Resource.Secondary {
		secondary = append(secondary, filter.Secondary{Room: s.Room, Keyword: s.Keyword})
	}

	builder := &report.Builder{
		Hours:    hours,
		Rule:     filter.NewRule(cfg.Resource.Label, cfg.Resource.Aliases, secondary),
		Location: loc,
		Workers:  cfg.Workers,
	}

	src, err := feed.New(cfg.Source, loc)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		loc:     loc,
		builder: builder,
		store:   &refresh.Store{},
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	a.runner = &refresh.Runner{
		Source:      src,
		Builder:     builder,
		HorizonDays: cfg.HorizonDays,
		OutputPath:  cfg.OutputPath,
		Store:       a.store,
		Metrics:     a.metrics,
	}

	appLog.Info("effective config",
		"config_path", configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"resource", cfg.Resource.Label,
		"source", cfg.Source.Kind,
		"output", cfg.OutputPath,
	)
	return a, nil
}
