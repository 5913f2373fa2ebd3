package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tazhate/flock/internal/forms"
)

func formsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forms",
		Short: "Manage public form configurations",
	}
	cmd.AddCommand(formsImportCmd(), formsListCmd())
	return cmd
}

func formsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.yaml...",
		Short: "Create or replace form configurations from YAML definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				def, err := forms.ParseDefinition(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				cfg, err := a.forms.Import(cmd.Context(), def)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (id %d) -> %s\n", cfg.FormType, cfg.ID, cfg.TargetTable)
			}
			return nil
		},
	}
}

func formsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List form configurations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			configs, err := a.forms.ListConfigs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tTABLE\tACTIVE\tTITLE")
			for _, c := range configs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", c.ID, c.FormType, c.TargetTable, c.IsActive, c.Title)
			}
			return tw.Flush()
		},
	}
}
