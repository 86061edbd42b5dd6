package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"parallel-ytdl/internal/config"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "show the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "print the merged configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.flags.json {
				return printJSON(a.stdout, a.cfg)
			}
			data, err := config.Encode(a.cfg)
			if err != nil {
				return err
			}
			source := a.configPath
			if source == "" {
				source = "defaults"
			}
			_, _ = fmt.Fprintf(a.stdout, "# source: %s\n%s", source, data)
			return nil
		},
	})
	return cmd
}
