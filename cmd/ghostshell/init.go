package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/config"
	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/pmezard/go-difflib/difflib"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ghostshell init [flags]\n\nCreate or update the .ghostshell directory and its config.yaml.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	dir := fs.String("dir", config.DirName, "path to .ghostshell directory")
	defaults := fs.Bool("defaults", false, "write the default configuration without prompting")
	force := fs.Bool("force", false, "overwrite an existing config without confirmation")
	_ = fs.Parse(args)

	cfg := config.Default()
	var secret string
	if !*defaults {
		a := answersFrom(cfg)
		if err := runWizard(&a); err != nil {
			return err
		}
		if err := a.apply(&cfg); err != nil {
			return err
		}
		secret = a.Token
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	d := config.NewDir(*dir)
	path := d.ConfigPath()

	existing, err := os.ReadFile(path) //nolint:gosec // path is built from the caller's --dir flag
	switch {
	case err == nil:
		diff := configDiff(path, string(existing), string(data))
		if diff == "" && secret == "" {
			fmt.Printf("%s is up to date\n", path)
			return nil
		}
		if diff != "" {
			fmt.Println(titleStyle.Render("Changes to " + path))
			fmt.Println(renderDiff(diff))
			if !*force {
				ok, err := confirm("Overwrite existing config?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read config: %w", err)
	}

	if err := writeDir(d, data, secret); err != nil {
		return err
	}

	fmt.Printf("Initialized %s\n", d.Root())
	return nil
}

// writeDir creates the directory, writes the config and, when a token was
// given, stores it in the git-ignored .env file.
func writeDir(d config.Dir, configYAML []byte, secret string) error {
	if err := d.EnsureStructure(); err != nil {
		return fmt.Errorf("create %s: %w", d.Root(), err)
	}
	if err := os.WriteFile(d.ConfigPath(), configYAML, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if secret == "" {
		return nil
	}

	env, err := godotenv.Read(d.EnvPath())
	if err != nil {
		env = map[string]string{}
	}
	env["SUBCONSCIOUS_ACCESS_TOKEN"] = secret
	if err := godotenv.Write(env, d.EnvPath()); err != nil {
		return fmt.Errorf("write env: %w", err)
	}
	return os.Chmod(d.EnvPath(), 0o600)
}

// configDiff returns a unified diff between the old and new config, or ""
// when they are equal.
func configDiff(path, oldContent, newContent string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: path,
		ToFile:   path + " (new)",
		Context:  3,
	}

	result, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(diff error: %v)", err)
	}
	return result
}

func renderDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = titleStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = diffHunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = diffAddStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = diffDelStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	)).Run()
	return ok, err
}

// wizardAnswers holds the wizard's text inputs before validation.
type wizardAnswers struct {
	BaseURL    string
	Token      string //nolint:gosec // user input, written to the git-ignored .env
	Timeout    string // Seconds.
	MaxRetries string
	Addr       string
	AllowAll   bool
}

func answersFrom(cfg config.Config) wizardAnswers {
	return wizardAnswers{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    strconv.Itoa(int(time.Duration(cfg.API.RequestTimeout).Seconds())),
		MaxRetries: strconv.Itoa(cfg.Retry.MaxRetries),
		Addr:       cfg.HTTP.Addr,
		AllowAll:   cfg.HTTP.CORS.AllowAll,
	}
}

func runWizard(a *wizardAnswers) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Value(&a.BaseURL).
				Validate(validateBaseURL),
			huh.NewInput().
				Title("Access token").
				Description("Saved to .ghostshell/.env. Leave empty to use SUBCONSCIOUS_ACCESS_TOKEN.").
				EchoMode(huh.EchoModePassword).
				Value(&a.Token),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Request timeout (seconds)").
				Value(&a.Timeout).
				Validate(intAtLeast(1)),
			huh.NewInput().
				Title("Max retries for transient failures").
				Value(&a.MaxRetries).
				Validate(intAtLeast(0)),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address for ghostshell serve").
				Value(&a.Addr),
			huh.NewConfirm().
				Title("Allow browser calls from any origin?").
				Value(&a.AllowAll),
		),
	).Run()
}

// apply validates the answers and writes them into cfg.
func (a wizardAnswers) apply(cfg *config.Config) error {
	if err := validateBaseURL(a.BaseURL); err != nil {
		return err
	}
	timeout, err := strconv.Atoi(strings.TrimSpace(a.Timeout))
	if err != nil || timeout < 1 {
		return fmt.Errorf("request timeout must be a positive number of seconds, got %q", a.Timeout)
	}
	retries, err := strconv.Atoi(strings.TrimSpace(a.MaxRetries))
	if err != nil || retries < 0 {
		return fmt.Errorf("max retries must be a non-negative integer, got %q", a.MaxRetries)
	}

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	cfg.API.RequestTimeout = config.Duration(time.Duration(timeout) * time.Second)
	cfg.Retry.MaxRetries = retries
	if addr := strings.TrimSpace(a.Addr); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if a.AllowAll {
		cfg.HTTP.CORS = config.CORSConfig{AllowAll: true}
	}

	return cfg.Validate()
}

func validateBaseURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter an absolute http(s) URL")
	}
	return nil
}

func intAtLeast(minimum int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < minimum {
			return fmt.Errorf("enter a whole number >= %d", minimum)
		}
		return nil
	}
}
