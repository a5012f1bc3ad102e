package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/settings"
)

func newSettingsCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change the saved provider and API keys",
	}
	cmd.AddCommand(
		newSettingsShowCommand(g),
		newSettingsSetCommand(g),
		newSettingsClearCommand(g),
		newSettingsSecretCommand(g),
	)
	return cmd
}

func newSettingsShowCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved settings with keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.openRepo(cmd.Context()); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "backend\t%s\n", e.cfg.Settings.Backend)
			fmt.Fprintf(tw, "provider\t%s\n", e.stored.SelectedProvider)
			for _, p := range model.Providers {
				line := model.MaskKey(e.stored.Credential(p))
				if e.stored.Credential(p) == "" && e.settings.Credential(p) != "" {
					line = model.MaskKey(e.settings.Credential(p)) + " (from environment)"
				}
				fmt.Fprintf(tw, "%s key\t%s\n", p, line)
			}
			return tw.Flush()
		},
	}
}

type setOptions struct {
	provider string
	keys     map[model.Provider]*string
}

func newSettingsSetCommand(g *globalOptions) *cobra.Command {
	opts := &setOptions{keys: make(map[model.Provider]*string)}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the selected provider or API keys",
		Example: `  mailassist settings set --provider claude
  mailassist settings set --openai-key sk-... --gemini-key AIza...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.openRepo(cmd.Context()); err != nil {
				return err
			}

			next := e.stored
			changed := false
			if cmd.Flags().Changed("provider") {
				p, err := model.ParseProvider(opts.provider)
				if err != nil {
					return err
				}
				next.SelectedProvider = p
				changed = true
			}
			for _, p := range model.Providers {
				if cmd.Flags().Changed(string(p) + "-key") {
					next = next.WithCredential(p, strings.TrimSpace(*opts.keys[p]))
					changed = true
				}
			}
			if !changed {
				return fmt.Errorf("nothing to set; pass --provider or a --<provider>-key flag")
			}

			if err := e.repo.Save(cmd.Context(), next); err != nil {
				return err
			}
			e.logger.Info("settings saved", "provider", next.SelectedProvider)
			fmt.Fprintln(cmd.OutOrStdout(), "Settings saved.")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider to use: openai, gemini or claude")
	for _, p := range model.Providers {
		opts.keys[p] = cmd.Flags().String(string(p)+"-key", "", fmt.Sprintf("API key for %s", p.DisplayName()))
	}
	return cmd
}

func newSettingsClearCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every saved API key and reset the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.openRepo(cmd.Context()); err != nil {
				return err
			}

			if err := e.repo.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared.")
			return nil
		},
	}
}

var secretNames = map[string]string{
	"ews":  settings.SecretEWS,
	"imap": settings.SecretIMAP,
}

func newSettingsSecretCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "secret ews|imap",
		Short: "Store a mail host password or client secret, read from stdin",
		Example: `  printf '%s' "$PASSWORD" | mailassist settings secret imap`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"ews", "imap"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ok := secretNames[args[0]]
			if !ok {
				return fmt.Errorf("unknown secret %q (want ews or imap)", args[0])
			}

			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			value, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			value = strings.TrimRight(value, "\r\n")
			if value == "" {
				if err != nil {
					return fmt.Errorf("reading secret from stdin: %w", err)
				}
				return fmt.Errorf("empty secret")
			}

			if err := e.secrets().Set(name, value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Secret stored.")
			return nil
		},
	}
}
