package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSeedCmd() *cobra.Command {
	f := &configFlags{}
	var format string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print the dataset the server would be seeded with",
		Long: `Print the effective seed dataset as JSON or YAML.

The output has the same shape as a seed file, so it can be edited and passed
back with --seed-file.`,
		Example: `  # Dump the built-in dataset as a starting point for a seed file
  odatad seed --format yaml > seed.yaml

  # Check what a set of seed files resolves to
  odatad seed --seed-file 'seed/*.json'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), f, os.LookupEnv)
			if err != nil {
				return err
			}
			d, err := loadDataset(cfg)
			if err != nil {
				return err
			}
			if cfg.Seed.Disabled {
				d.Customers, d.Orders = nil, nil
			}

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(d.Records())
			case "yaml", "yml":
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(d.Records()); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVarP(&format, "format", "o", "json", "Output format (json, yaml)")
	return cmd
}
