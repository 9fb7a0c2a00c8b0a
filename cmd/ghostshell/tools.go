package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Subconscious-ai/ghostshell/pkg/tools/catalog"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/mcpclient"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
	"github.com/charmbracelet/glamour"
)

func runTools(args []string) error {
	fs := flag.NewFlagSet("tools", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ghostshell tools [flags]\n\nList the available tools with their parameters.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	var c commonFlags
	c.register(fs)
	server := fs.String("server", "", "list the tools of a hosted server instead (SSE, streamable or ws:// URL)")
	tok := fs.String("token", "", "bearer token for --server (default: configured token)")
	plain := fs.Bool("plain", false, "print markdown without terminal styling")
	width := fs.Int("width", 100, "word wrap width")
	_ = fs.Parse(args)

	cfg, log, err := c.load()
	if err != nil {
		return err
	}

	var tools []toolbox.Tool
	if *server != "" {
		ctx := context.Background()
		client, err := mcpclient.Dial(ctx, *server, firstNonEmpty(*tok, cfg.API.Token))
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if tools, err = client.ListTools(ctx); err != nil {
			return err
		}
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	} else {
		tools = buildToolBox(cfg, log).Tools()
	}

	md := toolsMarkdown(tools, catalog.Workflow)
	if *plain {
		fmt.Print(md)
		return nil
	}

	fmt.Println(renderMarkdown(md, *width))
	return nil
}

// renderMarkdown converts markdown text to terminal-formatted output,
// falling back to the raw text.
func renderMarkdown(text string, width int) string {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

type param struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// schemaParams lists the properties of an object schema, required ones
// first, each group sorted by name.
func schemaParams(raw json.RawMessage) []param {
	var s struct {
		Properties map[string]struct {
			Type        any    `json:"type"`
			Description string `json:"description"`
			Enum        []any  `json:"enum"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	params := make([]param, 0, len(s.Properties))
	for name, p := range s.Properties {
		typ := fmt.Sprint(p.Type)
		if p.Type == nil {
			typ = "any"
		}
		desc := p.Description
		if len(p.Enum) > 0 {
			vals := make([]string, len(p.Enum))
			for i, v := range p.Enum {
				vals[i] = fmt.Sprint(v)
			}
			desc = strings.TrimSpace(desc + " (one of: " + strings.Join(vals, ", ") + ")")
		}
		params = append(params, param{Name: name, Type: typ, Required: required[name], Description: desc})
	}

	sort.Slice(params, func(i, j int) bool {
		if params[i].Required != params[j].Required {
			return params[i].Required
		}
		return params[i].Name < params[j].Name
	})
	return params
}

func toolsMarkdown(tools []toolbox.Tool, workflow []string) string {
	var sb strings.Builder

	sb.WriteString("# Subconscious AI tools\n\n")
	if len(workflow) > 0 {
		sb.WriteString("## Workflow\n\n")
		for _, step := range workflow {
			sb.WriteString(step + "\n")
		}
		sb.WriteString("\n")
	}

	for _, t := range tools {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", t.Name, t.Description)

		params := schemaParams(t.InputSchema)
		if len(params) == 0 {
			sb.WriteString("_No parameters._\n\n")
			continue
		}

		sb.WriteString("| Parameter | Type | Required | Description |\n|---|---|---|---|\n")
		for _, p := range params {
			req := ""
			if p.Required {
				req = "yes"
			}
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", p.Name, p.Type, req, strings.ReplaceAll(p.Description, "|", `\|`))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
