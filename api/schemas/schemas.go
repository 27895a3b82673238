// Package schemas defines the shared contract types exchanged between the
// submission orchestrator, the in-page execution bridge, and consumers of the
// public API surface (CLI commands, the editor client).
package schemas

import (
	"context"
	"fmt"
)

// Session is one ephemeral automated browsing context, owned exclusively by
// a single orchestration attempt. Close is idempotent and never fails; a
// session that is already gone counts as closed.
type Session interface {
	// ID is the opaque handle, unique per active session.
	ID() string
	// FinalURL is the location resolved after load completion.
	FinalURL() string
	// Context carries the browsing context for page actions; it is
	// cancelled when the session closes.
	Context() context.Context
	// Close tears the session down.
	Close()
}

// ErrorCode is a stable, machine-readable identifier for a submission
// failure. Codes are part of the public contract: clients branch on them, so
// values never change once released.
type ErrorCode string

const (
	CodeLoginRequired       ErrorCode = "LOGIN_REQUIRED"
	CodePageLoadTimeout     ErrorCode = "PAGE_LOAD_TIMEOUT"
	CodeTurnstileTimeout    ErrorCode = "TURNSTILE_TIMEOUT"
	CodeStatusLookupBlocked ErrorCode = "STATUS_LOOKUP_BLOCKED"
	CodeProblemIDMissing    ErrorCode = "PROBLEM_ID_MISSING"
	// CodeSubmitRejectedNoToken is the compound rejection: the server turned
	// the submission down after the turnstile field was never found on the
	// page, which usually means the page was served in a degraded state.
	CodeSubmitRejectedNoToken ErrorCode = "SUBMIT_REJECTED_NO_TOKEN"
	CodeSubmitRejected        ErrorCode = "SUBMIT_REJECTED"
	CodeRemoteException       ErrorCode = "REMOTE_EXCEPTION"
	CodeUnknown               ErrorCode = "UNKNOWN"
)

// Classification pairs a failure code with a short remediation hint suitable
// for direct display to the user.
type Classification struct {
	Code ErrorCode `json:"code"`
	Hint string    `json:"hint"`
}

// Format renders the single-string display form used by the orchestrator:
// "[CODE] message (hint)".
func (c Classification) Format(message string) string {
	return fmt.Sprintf("[%s] %s (%s)", c.Code, message, c.Hint)
}

// LanguageOption is one entry of the submit page's language <select>.
type LanguageOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubmitPageData is the result of scraping a problem's submit page.
type SubmitPageData struct {
	LanguageOptions []LanguageOption `json:"languageOptions"`
}

// SubmitParams carries the logical fields of one submission attempt.
type SubmitParams struct {
	ProblemID  string `json:"problemId"`
	LanguageID string `json:"languageId"`
	SourceCode string `json:"sourceCode"`
	// CodeOpen is the source visibility flag: "open", "close" or "onlyaccepted".
	CodeOpen string `json:"codeOpen"`
	// Username scopes the status lookup to the submitting account when known.
	Username string `json:"username"`
}

// SubmitResult is the successful outcome of a submission attempt.
type SubmitResult struct {
	// SubmissionID is the judge-assigned id scraped from the status table.
	// Empty when the submission was accepted but confirmation could not be
	// read in time.
	SubmissionID string `json:"submissionId,omitempty"`
	// StatusURL points at the status listing filtered to this submission.
	StatusURL string `json:"url,omitempty"`
}

// SubmitError is the failure outcome surfaced to API consumers. Message is
// the formatted "[CODE] message (hint)" string; Code is the raw identifier
// for programmatic handling.
type SubmitError struct {
	Message string    `json:"error"`
	Code    ErrorCode `json:"errorCode"`
}

func (e *SubmitError) Error() string { return e.Message }
