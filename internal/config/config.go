// Package config provides CLI configuration and application logic for
// kumitate.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/mizumoto/kumitate/internal/kumitate"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configFileName is looked up in the working directory when --config is not
// given.
const configFileName = ".kumitate.yaml"

// CLI is the root command configuration with subcommands.
type CLI struct {
	LogLevel string           `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info'"`
	Config   string           `kong:"short='c',help='Path to the check configuration file',type='path'"`
	Check    CheckCmd         `kong:"cmd,default='withargs',help='Resolve and validate component directives (default)'"`
	Version  kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`
}

// CheckCmd is the default command for validating component graphs.
type CheckCmd struct {
	Plan  bool     `kong:"help='Print the initialization plan for valid components'"`
	Files []string `kong:"arg,help='Go files to check'"`
}

// Run executes the check command.
func (c *CheckCmd) Run(cli *CLI) error {
	setupLogger(cli.LogLevel)

	if len(c.Files) == 0 {
		return fmt.Errorf("no files specified")
	}

	opts, err := loadOptions(cli.Config)
	if err != nil {
		return err
	}

	slog.Info("checking component directives", "files", c.Files)

	processor := kumitate.NewProcessor(opts, os.Stdout, c.Plan)
	return processor.ProcessFiles(context.Background(), c.Files)
}

// fileConfig is the on-disk shape of .kumitate.yaml.
type fileConfig struct {
	Checks struct {
		Nullability string `yaml:"nullability"`
		ScopeCycle  string `yaml:"scope-cycle"`
	} `yaml:"checks"`
}

// loadOptions reads validator options from the given path, or from
// .kumitate.yaml in the working directory when no path is given. A missing
// default file yields the default options.
func loadOptions(path string) (kumitate.Options, error) {
	var opts kumitate.Options

	explicit := path != ""
	if !explicit {
		path = configFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return opts, nil
		}
		return opts, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return opts, fmt.Errorf("parse config %s: %w", path, err)
	}

	if opts.Nullability, err = kumitate.ParseSeveritySetting(cfg.Checks.Nullability); err != nil {
		return opts, fmt.Errorf("config %s: checks.nullability: %w", path, err)
	}
	if opts.ScopeCycle, err = kumitate.ParseSeveritySetting(cfg.Checks.ScopeCycle); err != nil {
		return opts, fmt.Errorf("config %s: checks.scope-cycle: %w", path, err)
	}
	return opts, nil
}

func Run() error {
	var cli CLI
	kongCtx := kong.Parse(&cli,
		kong.Name("kumitate"),
		kong.Description("A compile-time dependency injection graph checker for Go"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s) released on %s", version, commit, date),
		},
	)

	return kongCtx.Run(&cli)
}

func setupLogger(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
