package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/mcpclient"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
	"github.com/mattn/go-runewidth"
)

// errCallFailed reports a tool failure that was already printed.
var errCallFailed = errors.New("tool call failed")

func runCall(args []string) error {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ghostshell call [flags] <tool> [flags]\n\nRun one tool and print its result.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	var c commonFlags
	c.register(fs)
	rawArgs := fs.String("args", "{}", "tool arguments as a JSON object")
	server := fs.String("server", "", "call a hosted server instead (SSE, streamable or ws:// URL)")
	tok := fs.String("token", "", "bearer token (default: configured token)")
	raw := fs.Bool("raw", false, "print the result as JSON")
	width := fs.Int("width", 120, "truncate output lines to this many columns (0 = no limit)")

	name, err := parseCallArgs(fs, args)
	if err != nil {
		fs.Usage()
		return err
	}

	toolArgs, err := handlers.ParseArgs([]byte(*rawArgs))
	if err != nil {
		return fmt.Errorf("-args: %w", err)
	}

	cfg, log, err := c.load()
	if err != nil {
		return err
	}
	if *tok != "" {
		cfg.API.Token = *tok
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var res handlers.Result
	if *server != "" {
		client, err := mcpclient.Dial(ctx, *server, cfg.API.Token)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if res, err = client.CallTool(ctx, name, toolArgs); err != nil {
			return err
		}
	} else {
		tb := buildToolBox(cfg, log)
		res, err = tb.Call(ctx, name, toolArgs, envProvider(cfg))
		if errors.Is(err, toolbox.ErrToolNotFound) {
			return fmt.Errorf("unknown tool %q (run \"ghostshell tools\" to list them)", name)
		}
		if err != nil {
			return err
		}
	}

	if *raw {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Println(formatResult(res, *width))
	}

	if !res.Success {
		return errCallFailed
	}
	return nil
}

// parseCallArgs parses flags placed before and after the tool name and
// returns the name.
func parseCallArgs(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() == 0 {
		return "", errors.New("missing tool name")
	}

	name := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return "", err
	}
	if fs.NArg() > 0 {
		return "", fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	return name, nil
}

// formatResult renders a Result for the terminal: a status line followed by
// the indented data, each line cut to width columns.
func formatResult(res handlers.Result, width int) string {
	if !res.Success {
		return errStyle.Render("✗ ") + res.Message + " " + codeStyle.Render("("+res.Error+")")
	}

	var sb strings.Builder
	sb.WriteString(okStyle.Render("✓ ") + res.Message)

	if len(res.Data) > 0 {
		data, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			return sb.String()
		}
		lines := strings.Split(string(data), "\n")
		for i, line := range lines {
			lines[i] = truncateLine(line, width-dataStyle.GetPaddingLeft())
		}
		sb.WriteString("\n" + dataStyle.Render(strings.Join(lines, "\n")))
	}

	return sb.String()
}

// truncateLine shortens s to at most width display columns, marking the cut
// with an ellipsis. A non-positive width disables truncation.
func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
