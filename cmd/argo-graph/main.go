package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/datasource"
	"github.com/rxtech-lab/argo-graph/internal/indicator"
	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/internal/strategy"
	"github.com/rxtech-lab/argo-graph/internal/version"
)

// runAction loads a strategy document, plays it over the parquet market data
// and optionally writes the run statistics.
func runAction(ctx context.Context, cmd *cli.Command) error {
	level, err := zapcore.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	var zlog *logger.Logger

	if path := cmd.String("log-file"); path != "" {
		zlog = logger.NewFileLogger(path, level)
	} else if zlog, err = logger.NewLoggerWithLevel(level); err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	source, err := datasource.NewDuckDBSource("", zlog)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	if err := source.Initialize(ctx, cmd.String("data")); err != nil {
		return err
	}

	s, err := strategy.New(cfg, strategy.Deps{
		Source:          source,
		Calculator:      indicator.NewDefaultRegistry(),
		Trading:         nil,
		Now:             time.Now,
		HandleCapacity:  0,
		CommandCapacity: 0,
		StopGrace:       0,
		StopTimeout:     cmd.Duration("stop-timeout"),
		Logger:          zlog,
	})
	if err != nil {
		return err
	}

	if speed := cmd.Int("speed"); speed >= 0 {
		s.SetPlaySpeed(int(speed))
	}

	runErr := play(ctx, s)

	stopCtx, cancel := context.WithTimeout(context.Background(), cmd.Duration("stop-timeout"))
	defer cancel()

	if err := s.Stop(stopCtx); err != nil {
		zlog.Warn("failed to stop strategy", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}

	summary := s.Stats().Summary()
	fmt.Printf("Played %d/%d bars, %d orders (%d filled), final equity %s, max drawdown %s\n",
		summary.PlayedCount, summary.SignalCount, summary.TotalOrders, summary.FilledOrders,
		summary.FinalEquity.StringFixed(2), summary.MaxDrawdown.StringFixed(2))

	if path := cmd.String("stats"); path != "" {
		if err := s.Stats().WriteYAML(path); err != nil {
			return err
		}

		zlog.Info("Stats written", zap.String("path", path))
	}

	return nil
}

func play(ctx context.Context, s *strategy.Strategy) error {
	if err := s.Check(ctx); err != nil {
		return err
	}

	if err := s.Init(ctx); err != nil {
		return err
	}

	bar := progressbar.NewOptions(s.SignalCount(),
		progressbar.OptionSetDescription(fmt.Sprintf("Playing %s", s.Name())),
		progressbar.OptionShowCount())

	done := make(chan error, 1)

	go func() { done <- s.Play(ctx) }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			_ = bar.Set(s.PlayIndex() + 1)
			_ = bar.Finish()
			fmt.Println()

			return err
		case <-ticker.C:
			_ = bar.Set(s.PlayIndex() + 1)
		}
	}
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		out string
		err error
	)

	if nodeType := cmd.String("node-type"); nodeType != "" {
		out, err = config.GetParamsSchema(config.NodeType(nodeType))
	} else {
		out, err = config.GetConfigSchema()
	}

	if err != nil {
		return err
	}

	fmt.Println(out)

	return nil
}

func versionAction(context.Context, *cli.Command) error {
	fmt.Println(version.GetVersion())

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "argo-graph",
		Usage: "Run node graph backtest strategies",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Backtest a strategy document",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the strategy document (YAML or JSON)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to a parquet file of one minute bars",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "speed",
						Aliases: []string{"s"},
						Usage:   "Bars per second, 0 plays as fast as possible. Defaults to the start node's play_speed",
						Value:   -1,
					},
					&cli.StringFlag{
						Name:  "stats",
						Usage: "Write the run statistics as YAML to this path",
					},
					&cli.DurationFlag{
						Name:  "stop-timeout",
						Usage: "How long to wait for every node to stop",
						Value: strategy.DefaultStopTimeout,
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Write logs to a rotated file instead of stdout",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "Log level (debug, info, warn, error)",
						Value: "warn",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of strategy documents",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "node-type",
						Usage: "Print the params schema of one node type instead",
					},
				},
				Action: schemaAction,
			},
			{
				Name:   "version",
				Usage:  "Print the engine version",
				Action: versionAction,
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
