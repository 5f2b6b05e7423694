// ABOUTME: CLI entrypoint for the kicksight analytics chat client with chat and replay-server modes.
// ABOUTME: Wires together the conversation store, streaming transport, session runner, embed cache, and TUI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/kicksight/conversation"
	"github.com/2389-research/kicksight/embedview"
	"github.com/2389-research/kicksight/server"
	"github.com/2389-research/kicksight/session"
	"github.com/2389-research/kicksight/transport"
	"github.com/2389-research/kicksight/tui"
)

var version = "dev"

// config holds all CLI configuration parsed from flags.
type config struct {
	serveMode   bool
	backend     string
	dbPath      string
	timeout     time.Duration
	showVersion bool
}

func main() {
	if err := server.LoadDotEnv(".env"); err != nil {
		log.Printf("load .env err=%v", err)
	}

	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("kicksight %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

// parseFlags parses command-line flags and returns a populated config.
func parseFlags() config {
	var cfg config

	fs := flag.NewFlagSet("kicksight", flag.ContinueOnError)
	fs.BoolVar(&cfg.serveMode, "serve", false, "Start the replay supervisor server instead of the chat client")
	fs.StringVar(&cfg.backend, "backend", envOrDefault("KICKSIGHT_BACKEND", "http://127.0.0.1:8899"), "Supervisor backend base URL")
	fs.StringVar(&cfg.dbPath, "db", "", "Conversation database path (default: $XDG_DATA_HOME/kicksight/conversations.db)")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "Stream inactivity timeout (default: 2m)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(os.Stderr, version)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	return cfg
}

// run dispatches to the appropriate mode. Returns an exit code.
func run(cfg config) int {
	if cfg.serveMode {
		return runServe()
	}
	return runChat(cfg)
}

// runServe starts the scripted replay supervisor.
func runServe() int {
	srvCfg, err := server.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kicksight: %v\n", err)
		return 1
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kicksight: %v\n", err)
		return 1
	}
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "kicksight: %v\n", err)
		return 1
	}
	return 0
}

// runChat starts the interactive chat client against the configured backend.
func runChat(cfg config) int {
	dbPath := cfg.dbPath
	if dbPath == "" {
		dir, err := defaultDataDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "kicksight: %v\n", err)
			return 1
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "kicksight: create data dir: %v\n", err)
			return 1
		}
		dbPath = filepath.Join(dir, "conversations.db")
	}

	store, err := conversation.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kicksight: open conversation store: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	client := transport.NewClient(cfg.backend)

	updates := make(chan string, 16)
	var runnerOpts []session.Option
	runnerOpts = append(runnerOpts, session.WithNotify(func(threadID string) {
		select {
		case updates <- threadID:
		default:
		}
	}))
	if cfg.timeout > 0 {
		runnerOpts = append(runnerOpts, session.WithInactivityTimeout(cfg.timeout))
	}
	runner := session.NewRunner(client, store, runnerOpts...)

	notices := make(chan string, 16)
	embeds := embedview.NewCache(newPanelSurface, cfg.backend,
		embedview.WithExternalOpener(openBrowser),
		embedview.WithNotify(func(text string) {
			select {
			case notices <- text:
			default:
			}
		}),
	)

	app := tui.NewApp(store, runner, embeds, updates, notices)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "kicksight: %v\n", err)
		return 1
	}
	return 0
}

// panelSurface is the terminal rendition of an embedded dashboard: the TUI
// draws an informational panel and the real dashboard opens in the browser.
type panelSurface struct {
	url string
}

func (p *panelSurface) Close() error { return nil }

func newPanelSurface(url, title string) (embedview.Surface, error) {
	return &panelSurface{url: url}, nil
}

// openBrowser hands a URL to the platform opener.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
