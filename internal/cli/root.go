// Package cli wires configuration, persistence, mail hosts and providers
// into the mailassist commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailassist/internal/app"
	"github.com/nhle/mailassist/internal/bridge"
	"github.com/nhle/mailassist/internal/model"
)

var (
	version = "dev"
	commit  = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the command tree. Running the root command
// without a subcommand starts the terminal UI.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "mailassist",
		Short: "Chat with an AI model about your email",
		Long: `mailassist summarizes the open email, or a keyword search over your inbox,
with OpenAI, Google Gemini or Anthropic Claude, and saves drafted replies
back to the mail host.

Quick Start:
  mailassist settings set --provider claude --claude-key sk-ant-...
  mailassist                               # open the chat UI
  mailassist ask "Summarize this email"    # one headless turn`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", model.DefaultConfigPath(), "Path to the config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newAskCommand(opts),
		newSettingsCommand(opts),
		newBridgeCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runTUI starts the bridge listener and the Bubble Tea program. Both run
// under one errgroup; when either stops, the other is shut down.
func runTUI(ctx context.Context, opts *globalOptions) error {
	e, err := opts.setup()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.openRepo(ctx); err != nil {
		return err
	}

	store := bridge.NewStore()
	session, hostLabel, err := e.newSession(ctx, store)
	if err != nil {
		return err
	}

	var listener *bridge.Listener
	if e.cfg.Bridge.Enabled {
		listener = bridge.NewListener(store, e.cfg.Bridge.Addr, e.logger)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if listener != nil {
		if err := listener.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			err := listener.Close()
			listener.Wait()
			return err
		})
	}

	m := app.New(app.Deps{
		Session:   session,
		Stored:    e.stored,
		Repo:      e.repo,
		Listener:  listener,
		HostLabel: hostLabel,
		Logger:    e.logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(gctx))

	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("running terminal UI: %w", err)
		}
		return nil
	})

	return g.Wait()
}
