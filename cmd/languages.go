// File: cmd/languages.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLanguagesCmd() *cobra.Command {
	var problemID string

	languagesCmd := &cobra.Command{
		Use:   "languages",
		Short: "List the languages offered on a problem's submit page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			comps := newComponents(ctx)
			defer comps.Shutdown()

			data, err := comps.Orchestrator.FetchSubmitPage(ctx, problemID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, opt := range data.LanguageOptions {
				fmt.Fprintf(w, "%s\t%s\n", opt.ID, opt.Name)
			}
			return w.Flush()
		},
	}

	// Language availability varies per problem, so the submit page of a
	// concrete problem has to be asked.
	languagesCmd.Flags().StringVarP(&problemID, "problem", "p", "1000", "problem id whose submit page is scraped")

	return languagesCmd
}
