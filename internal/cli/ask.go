package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/mailassist/internal/bridge"
	"github.com/nhle/mailassist/internal/chat"
	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/transcript"
)

type askOptions struct {
	mode        string
	keyword     string
	provider    string
	format      string
	bridgeStdin bool
	reply       bool
}

func newAskCommand(g *globalOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Run one chat turn without the UI",
		Long: `Ask sends a single question with mail context to the selected provider
and prints the answer.

In current mode the open message is taken from the mail host, or from a
bridge record. In search mode up to 20 inbox messages whose body contains
--keyword are summarized.

With --format json or yaml the whole transcript is printed instead.`,
		Example: `  mailassist ask "Summarize this email"
  mailassist ask --mode search --keyword invoice "Which invoices are overdue?"
  mailassist ask --provider gemini --format yaml "Draft a polite reply"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, g, opts, strings.Join(args, " "))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.mode, "mode", "m", "current", "Context mode: current or search")
	f.StringVarP(&opts.keyword, "keyword", "k", "", "Search keyword (search mode)")
	f.StringVarP(&opts.provider, "provider", "p", "", "Override the saved provider for this turn")
	f.StringVarP(&opts.format, "format", "f", "text", "Output format: text, json or yaml")
	f.BoolVar(&opts.bridgeStdin, "bridge-stdin", false, "Read bridge messages from stdin before asking")
	f.BoolVar(&opts.reply, "reply", false, "Save the answer as a reply draft on the mail host")
	return cmd
}

func runAsk(cmd *cobra.Command, g *globalOptions, opts *askOptions, question string) error {
	ctx := cmd.Context()

	mode, err := model.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	switch opts.format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", opts.format)
	}

	e, err := g.setup()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.openRepo(ctx); err != nil {
		return err
	}
	current := e.settings
	if opts.provider != "" {
		p, err := model.ParseProvider(opts.provider)
		if err != nil {
			return err
		}
		current.SelectedProvider = p
	}

	store := bridge.NewStore()
	if opts.bridgeStdin {
		l := bridge.NewListener(store, "", e.logger)
		if err := l.Serve(ctx, cmd.InOrStdin()); err != nil {
			return err
		}
	}

	session, _, err := e.newSession(ctx, store, chat.WithMode(mode, opts.keyword))
	if err != nil {
		return err
	}

	res, err := session.Send(ctx, question, current)
	if err != nil {
		return err
	}
	if res.ContextErr != nil {
		e.logger.Warn("answered without mail context", "err", res.ContextErr)
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		if err := writeJSON(out, session.Entries()); err != nil {
			return err
		}
	case "yaml":
		if err := writeYAML(out, session.Entries()); err != nil {
			return err
		}
	default:
		if res.Err == nil {
			fmt.Fprintln(out, res.Entry.Content)
		}
	}
	if res.Err != nil {
		return res.Err
	}

	if opts.reply {
		if err := session.InsertReply(ctx, res.Entry.ID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Reply draft created.")
	}
	return nil
}

func writeJSON(w io.Writer, entries []transcript.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, entries []transcript.Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	return nil
}
