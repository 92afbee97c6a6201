package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewPresetsCmd prints the built-in and configured rule presets as YAML.
func NewPresetsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List mission rule presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.AllPresets())
		},
	}
}
