package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Subconscious-ai/ghostshell/pkg/httpapi"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/mcpserver"
)

func runStdio(args []string) error {
	fs := flag.NewFlagSet("stdio", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ghostshell stdio [flags]\n\nServe MCP over stdin/stdout using the environment token.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	var c commonFlags
	c.register(fs)
	_ = fs.Parse(args)

	cfg, log, err := c.load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.API.Token == "" {
		log.Warn("no access token configured; tool calls will fail until SUBCONSCIOUS_ACCESS_TOKEN is set")
	}

	tb := buildToolBox(cfg, log)
	srv := mcpserver.New(tb, envProvider(cfg), serverOptions(cfg, log))

	log.Info("serving MCP over stdio", "tools", tb.Len(), "api", cfg.API.BaseURL)

	if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio: %w", err)
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ghostshell serve [flags]\n\nServe the hosted HTTP front-end. Callers authenticate with their own bearer token.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	var c commonFlags
	c.register(fs)
	addr := fs.String("addr", "", "listen address (overrides http.addr and PORT)")
	_ = fs.Parse(args)

	cfg, log, err := c.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := httpapi.New(buildToolBox(cfg, log), httpapi.Options{
		Name:         cfg.Server.Name,
		Version:      cfg.Server.Version,
		Instructions: cfg.Server.Instructions,
		CORS:         cfg.HTTP.CORS,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	return srv.ListenAndServe(ctx, cfg.HTTP.Addr)
}
