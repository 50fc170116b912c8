package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tech-arch1tect/ziphub/config"
	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/operations"
	"github.com/tech-arch1tect/ziphub/internal/progress"
	"github.com/tech-arch1tect/ziphub/internal/watch"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var errPathRequired = errors.New("path is required (interactive selection is not available on the command line)")

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func main() {
	app := &cli.Command{
		Name:  "ziphub",
		Usage: "Compress folders, extract zip and rar archives, and serve both over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", Sources: cli.EnvVars("ZIPHUB_CONFIG")},
			&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for produced archives and folders"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "json or console"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP and websocket API",
				Action: runServe,
			},
			{
				Name:      "compress",
				Usage:     "Compress a folder or file into <name>.zip",
				ArgsUsage: "<path>",
				Action:    runCompress,
			},
			{
				Name:      "extract",
				Usage:     "Extract a .zip or .rar archive into a new folder",
				ArgsUsage: "<archive>",
				Action:    runExtract,
			},
			{
				Name:      "list",
				Aliases:   []string{"ls", "preview"},
				Usage:     "List the files inside an archive",
				ArgsUsage: "<archive>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output in JSON format"},
				},
				Action: runList,
			},
			{
				Name:      "watch",
				Usage:     "Extract or compress whatever is dropped into a folder",
				ArgsUsage: "<dir>",
				Action:    runWatch,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("output-dir"); dir != "" {
		cfg.OutputDir = dir
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if format := c.String("log-format"); format != "" {
		cfg.LogFormat = format
	}
	return cfg, cfg.Validate()
}

type cliEnv struct {
	cfg     *config.Config
	logger  *logging.Logger
	service *archive.Service
}

func newCLIEnv(c *cli.Command) (*cliEnv, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLoggerWithFormat(cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &cliEnv{
		cfg:     cfg,
		logger:  logger,
		service: archive.NewService(archive.OptionsFromConfig(cfg), notifier, logger),
	}, nil
}

func runServe(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	newServerApp(cfg).Run()
	return nil
}

func runCompress(ctx context.Context, c *cli.Command) error {
	return runOperation(ctx, c, archive.KindCompress)
}

func runExtract(ctx context.Context, c *cli.Command) error {
	return runOperation(ctx, c, archive.KindExtract)
}

func runOperation(ctx context.Context, c *cli.Command, kind archive.Kind) error {
	path := c.Args().First()
	if path == "" {
		return errPathRequired
	}

	env, err := newCLIEnv(c)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(string(kind)),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer: "█", SaucerHead: "█", SaucerPadding: "░",
			BarStart: "[", BarEnd: "]",
		}),
	)
	reporter := progress.NewAsync(progress.Func(func(e progress.Event) {
		bar.Describe(e.Message)
		_ = bar.Set(e.Percent)
	}))

	result := env.service.Run(ctx, archive.OperationRequest{SourcePath: path, Kind: kind}, reporter)
	reporter.Close()
	_ = bar.Finish()
	env.service.WaitNotifications()

	if !result.Success {
		return errors.New(result.Message)
	}
	fmt.Printf("%s %s\n", green("✓"), result.Message)
	fmt.Printf("  %s\n", cyan(result.OutputPath))
	return nil
}

func runList(ctx context.Context, c *cli.Command) error {
	path := c.Args().First()
	if path == "" {
		return errPathRequired
	}

	env, err := newCLIEnv(c)
	if err != nil {
		return err
	}

	result := env.service.Preview(ctx, path)
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if !result.Success {
			return cli.Exit("", 1)
		}
		return nil
	}

	if !result.Success {
		return errors.New(result.Message)
	}
	for _, name := range result.Files {
		fmt.Println(name)
	}
	fmt.Printf("%s %d files\n", yellow("Total:"), len(result.Files))
	return nil
}

func runWatch(ctx context.Context, c *cli.Command) error {
	dir := c.Args().First()
	if dir == "" {
		return errPathRequired
	}

	env, err := newCLIEnv(c)
	if err != nil {
		return err
	}
	env.cfg.WatchDir = dir
	if err := env.cfg.Validate(); err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ops := operations.NewService(env.service, nil, nil, env.cfg.OperationRetention, env.logger)
	w := watch.New(dir, env.cfg.WatchSettle, ops, env.logger)
	if err := w.Start(); err != nil {
		return err
	}

	fmt.Printf("%s %s %s %s\n", green("Watching"), cyan(dir), yellow("→"), cyan(env.cfg.OutputDir))
	<-ctx.Done()

	if err := w.Stop(); err != nil {
		env.logger.Warn("failed to stop watcher", zap.Error(err))
	}
	err = ops.Shutdown(context.Background())
	env.service.WaitNotifications()
	return err
}
