package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/apiclient"
	"github.com/Subconscious-ai/ghostshell/pkg/config"
	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/retry"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/catalog"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/mcpserver"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
	"github.com/joho/godotenv"
)

// commonFlags are shared by every command that talks to the backend.
type commonFlags struct {
	configPath string
	dir        string
	envFile    string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to configuration file (default: <dir>/config.yaml if present)")
	fs.StringVar(&c.dir, "dir", config.DirName, "path to .ghostshell directory")
	fs.StringVar(&c.envFile, "env", ".env", "path to .env file (ignored if missing)")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

// load reads the .env files, the configuration and builds the logger. Logs
// go to stderr: stdout carries the stdio MCP channel.
func (c *commonFlags) load() (config.Config, *slog.Logger, error) {
	if err := loadDotEnv(c.envFile); err != nil {
		return config.Config{}, nil, err
	}
	if err := loadDotEnv(config.NewDir(c.dir).EnvPath()); err != nil {
		return config.Config{}, nil, err
	}

	log, err := newLogger(c.logLevel, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}

	var cfg config.Config
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.LoadOptional(resolveConfigPath(c.configPath, c.dir))
	}
	if err != nil {
		return config.Config{}, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	return cfg, log, nil
}

// resolveConfigPath picks the explicit flag, else the config file inside
// the .ghostshell directory.
func resolveConfigPath(flagPath, dir string) string {
	if flagPath != "" {
		return flagPath
	}
	return config.NewDir(dir).ConfigPath()
}

// loadDotEnv loads environment variables from path. Missing files are
// ignored and variables already set win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// buildToolBox wires the backend client, retry policy and handlers into the
// full tool set with recovery, logging and the optional per-call deadline.
func buildToolBox(cfg config.Config, log *slog.Logger) *toolbox.ToolBox {
	client := apiclient.New(cfg.API.BaseURL, nil)
	client.Timeout = time.Duration(cfg.API.RequestTimeout)
	client.UserAgent = cfg.Server.Name + "/" + cfg.Server.Version
	client.Logger = log

	ropts := cfg.RetryOpts()
	ropts.Logger = log

	svc := handlers.New(client, handlers.Options{
		Retry:       retry.New(ropts),
		Logger:      log,
		ReadTimeout: time.Duration(cfg.API.ReadTimeout),
	})

	tb := catalog.ToolBox(svc)
	mw := []toolbox.Middleware{toolbox.Recovery(log), toolbox.Logger(log)}
	if cfg.API.CallTimeout > 0 {
		mw = append(mw, toolbox.Timeout(time.Duration(cfg.API.CallTimeout)))
	}
	tb.Use(mw...)

	return tb
}

// envProvider is the credential source of local front-ends: the configured
// token, else the process environment read on first use.
func envProvider(cfg config.Config) token.Provider {
	if cfg.API.Token != "" {
		return token.Static(cfg.API.Token)
	}
	return token.FromEnv()
}

func serverOptions(cfg config.Config, log *slog.Logger) mcpserver.Options {
	return mcpserver.Options{
		Name:         cfg.Server.Name,
		Version:      cfg.Server.Version,
		Instructions: cfg.Server.Instructions,
		Logger:       log,
	}
}
