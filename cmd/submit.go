// File: cmd/submit.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/api/schemas"
	"github.com/kimday0326/boj-editor/internal/judge"
	"github.com/kimday0326/boj-editor/internal/observability"
)

var numericID = regexp.MustCompile(`^\d+$`)

func newSubmitCmd() *cobra.Command {
	var (
		problemID string
		language  string
		file      string
		codeOpen  string
		username  string
	)

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a solution to the judge",
		Long: `Opens a hidden browser tab against the problem's submit page, passes the
Cloudflare check using your existing login session, and posts the source.
Reads the source from --file, or from stdin when --file is omitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if problemID == "" {
				return fmt.Errorf("a problem id must be provided")
			}
			if language == "" {
				return fmt.Errorf("a language must be provided")
			}

			source, err := readSource(file)
			if err != nil {
				return err
			}
			if len(source) == 0 {
				return fmt.Errorf("source code is empty")
			}

			ctx := cmd.Context()
			logger := observability.GetLogger()

			comps := newComponents(ctx)
			defer comps.Shutdown()

			languageID := language
			if !numericID.MatchString(language) {
				// A display name needs the submit page's option list to
				// resolve into the judge's numeric id.
				data, err := comps.Orchestrator.FetchSubmitPage(ctx, problemID)
				if err != nil {
					return err
				}
				languageID = judge.FindLanguageID(data.LanguageOptions, language)
				if languageID == "" {
					return fmt.Errorf("language %q is not offered for problem %s", language, problemID)
				}
			}

			result, err := comps.Orchestrator.Submit(ctx, schemas.SubmitParams{
				ProblemID:  problemID,
				LanguageID: languageID,
				SourceCode: string(source),
				CodeOpen:   codeOpen,
				Username:   username,
			})
			if err != nil {
				return err
			}

			logger.Info("Submission confirmed",
				zap.String("submission_id", result.SubmissionID),
				zap.String("status_url", result.StatusURL))
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted: #%s\n%s\n", result.SubmissionID, result.StatusURL)
			return nil
		},
	}

	submitCmd.Flags().StringVarP(&problemID, "problem", "p", "", "problem id, e.g. 1000")
	submitCmd.Flags().StringVarP(&language, "language", "l", "", "language id or display name, e.g. 95 or \"Python 3\"")
	submitCmd.Flags().StringVarP(&file, "file", "f", "", "source file (stdin when omitted)")
	submitCmd.Flags().StringVar(&codeOpen, "code-open", "", "source visibility: open, close or onlyaccepted")
	submitCmd.Flags().StringVar(&username, "username", "", "judge account, used for status confirmation")

	return submitCmd
}

func readSource(file string) ([]byte, error) {
	if file == "" {
		source, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read source from stdin: %w", err)
		}
		return source, nil
	}
	source, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return source, nil
}
