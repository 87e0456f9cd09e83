package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"mailfootprint/internal/app"
	"mailfootprint/internal/application/report"
	"mailfootprint/internal/infrastructure/config"
	"mailfootprint/internal/infrastructure/logging"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "mailfootprint",
		Usage: "Gmail metadata sync and email carbon footprint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to an optional YAML config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the daily reset, counters refresh and sync triggers",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
					return a.Serve(ctx)
				}),
			},
			{
				Name:  "sync",
				Usage: "List INBOX and SENT and store message metadata",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
					stats, err := a.RunSync(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("synced %d messages at %s\n", stats.Count, stats.FetchedAt)
					return nil
				}),
			},
			{
				Name:  "reset",
				Usage: "Clear stored records and counters now",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
					return a.Reset(ctx)
				}),
			},
			{
				Name:  "counters",
				Usage: "Refresh the INBOX and SENT totals",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
					c, err := a.RefreshCounters(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("inbox %d, sent %d, total %d\n", c.Inbox, c.Sent, c.Total)
					return nil
				}),
			},
			{
				Name:  "report",
				Usage: "Print the footprint summary",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print JSON instead of a table",
					},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					s, err := a.Report(ctx)
					if err != nil {
						return err
					}
					if cmd.Bool("json") {
						enc := json.NewEncoder(os.Stdout)
						enc.SetIndent("", "  ")
						return enc.Encode(s)
					}
					return report.Render(os.Stdout, s)
				}),
			},
			{
				Name:  "login",
				Usage: "Authorize Gmail read-only access",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app.App) error {
					return a.Login(ctx)
				}),
			},
		},
	}

	return cmd.Run(ctx, args)
}

type appAction func(ctx context.Context, cmd *cli.Command, a *app.App) error

func withApp(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := config.Load(cmd.String("config"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		if err != nil {
			return err
		}
		log.Logger = logger

		// consent needs a human on stdin
		if cfg.Interactive && !term.IsTerminal(int(os.Stdin.Fd())) {
			logger.Debug().Msg("stdin is not a terminal, disabling interactive consent")
			cfg.Interactive = false
		}

		a, err := app.New(cfg, logger, os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close state store")
			}
		}()

		return fn(ctx, cmd, a)
	}
}
