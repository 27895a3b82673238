// File: cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/observability"
	"github.com/kimday0326/boj-editor/internal/piston"
)

func newRunCmd() *cobra.Command {
	var (
		language string
		version  string
		file     string
		stdin    string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a source file against the Piston API",
		Long: `Runs code directly against the configured execution endpoint, bypassing
the proxy. Useful for checking a solution locally before submitting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if language == "" {
				return fmt.Errorf("a language must be provided")
			}

			source, err := readSource(file)
			if err != nil {
				return err
			}

			cfg := config.Get()
			client := piston.NewClient(cfg.Proxy.UpstreamURL, cfg.Proxy.APIKey, observability.GetLogger())

			resp, err := client.Execute(cmd.Context(), &piston.ExecuteRequest{
				Language: language,
				Version:  version,
				Files:    []piston.File{{Content: string(source)}},
				Stdin:    stdin,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Compile != nil && resp.Compile.Stderr != "" {
				fmt.Fprint(cmd.ErrOrStderr(), resp.Compile.Stderr)
			}
			fmt.Fprint(out, resp.Run.Stdout)
			if resp.Run.Stderr != "" {
				fmt.Fprint(cmd.ErrOrStderr(), resp.Run.Stderr)
			}
			if resp.Run.Code != nil && *resp.Run.Code != 0 {
				return fmt.Errorf("program exited with code %d", *resp.Run.Code)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&language, "language", "l", "", "piston language name, e.g. python")
	runCmd.Flags().StringVar(&version, "version", "*", "language version selector")
	runCmd.Flags().StringVarP(&file, "file", "f", "", "source file (stdin when omitted)")
	runCmd.Flags().StringVar(&stdin, "stdin", "", "input fed to the program")

	return runCmd
}
