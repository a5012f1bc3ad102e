package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/mailassist/internal/bridge"
)

func newBridgeCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Talk to the bridge channel of a running instance",
	}
	cmd.AddCommand(newBridgePushCommand(g))
	return cmd
}

func newBridgePushCommand(g *globalOptions) *cobra.Command {
	var (
		addr    string
		payload bridge.Payload
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send one open-message record to a running instance",
		Long: `Push sends the same message a desktop plugin sends when the user opens
an email. Missing fields get the defaults the plugin would use.`,
		Example: `  mailassist bridge push --subject "Q3 report" --body "Numbers attached" --sender-name Ana`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			if addr == "" {
				addr = e.cfg.Bridge.Addr
			}
			if err := bridge.Push(cmd.Context(), addr, payload); err != nil {
				return err
			}
			e.logger.Debug("bridge record pushed", "addr", addr, "subject", payload.Subject)
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %q to %s\n", payload.Record().Subject, addr)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "Bridge address (defaults to bridge.addr from the config)")
	f.StringVar(&payload.Subject, "subject", "", "Message subject")
	f.StringVar(&payload.Body, "body", "", "Message body")
	f.StringVar(&payload.SenderName, "sender-name", "", "Sender display name")
	f.StringVar(&payload.SenderEmail, "sender-email", "", "Sender address")
	return cmd
}
