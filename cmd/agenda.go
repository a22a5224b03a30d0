package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/triage-agenda/internal/render"
	"github.com/naka-gawa/triage-agenda/internal/usecase"
)

var agendaCmd = &cobra.Command{
	Use:   "agenda <team> <kind>",
	Short: "Generates a meeting agenda and prints it as markdown",
	Long: `Fetches the issues, pull requests and project items of a report from GitHub
and prints the rendered agenda to standard output.
Run "triage-agenda reports" to list the available team/kind pairs.`,
	Example: `  triage-agenda agenda lang triage
  triage-agenda agenda compiler prioritization --pretty`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		def, err := a.catalog.Lookup(args[0], args[1])
		if err != nil {
			return err
		}
		report, err := def.Report(a.factory)
		if err != nil {
			return err
		}

		var renderer usecase.Renderer = a.templates
		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			style, _ := cmd.Flags().GetString("style")
			renderer = &render.Pretty{Next: a.templates, Style: style}
		}
		ag := a.newAgenda(renderer)

		if summary, _ := cmd.Flags().GetBool("summary"); summary {
			res, err := ag.Build(ctx, report)
			if err != nil {
				return err
			}
			jsonData, err := json.MarshalIndent(usecase.Summarize(res.Buckets, time.Now()), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal summary to JSON: %w", err)
			}
			fmt.Fprintln(os.Stderr, string(jsonData))
			out, err := renderer.Render(report.Name, res.Data)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		}

		out, err := ag.Run(ctx, report)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agendaCmd)
	agendaCmd.Flags().Int("concurrency", usecase.DefaultConcurrency, "Maximum number of GitHub fetches in flight")
	agendaCmd.Flags().Bool("pretty", false, "Format the markdown for the terminal")
	agendaCmd.Flags().String("style", "dark", "Terminal style used with --pretty (dark, light, notty)")
	agendaCmd.Flags().Bool("summary", false, "Print per-bucket statistics as JSON to standard error")
}
