package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Lists the available reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TEAM\tKIND\tTEMPLATE\tTITLE")
		for _, def := range catalog.Definitions() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Team, def.Kind, def.Name, def.Title)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
}
