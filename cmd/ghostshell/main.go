package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const usageText = `Usage: ghostshell [command] [flags]

Commands:
  stdio   Serve MCP over stdin/stdout (default)
  serve   Serve the hosted HTTP front-end (REST, SSE, streamable HTTP, WebSocket)
  tools   List the available tools
  call    Run one tool and print its result
  init    Create or update .ghostshell/config.yaml interactively

Run "ghostshell <command> -h" for the flags of a command.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, errCallFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches to a subcommand. Arguments starting with "-" before any
// command belong to the default stdio command.
func run(args []string) error {
	cmd := "stdio"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "stdio":
		return runStdio(args)
	case "serve":
		return runServe(args)
	case "tools":
		return runTools(args)
	case "call":
		return runCall(args)
	case "init":
		return runInit(args)
	case "help":
		fmt.Fprint(os.Stdout, usageText)
		return nil
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
