package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/mailassist/internal/model"
)

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(newConfigInitCommand(g))
	return cmd
}

func newConfigInitCommand(g *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				_, err := os.Stat(g.configPath)
				if err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", g.configPath)
				}
				if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("checking %s: %w", g.configPath, err)
				}
			}

			if err := model.SaveConfig(g.configPath, model.DefaultAppConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", g.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
