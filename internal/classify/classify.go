// Package classify maps raw submission failures onto the stable error
// taxonomy. Classification is a pure function of the error message and the
// attempt's timeline; it keeps the user-facing hints decoupled from whatever
// text the failing layer happened to produce.
package classify

import (
	"strings"

	"github.com/kimday0326/boj-editor/api/schemas"
	"github.com/kimday0326/boj-editor/internal/judge"
	"github.com/kimday0326/boj-editor/internal/timeline"
)

// rule is one ordered classification entry. A rule matches when the message
// contains every substring in contains AND the timeline carries every stage
// in stages. Empty criteria match everything, which is how the final
// catch-all works.
type rule struct {
	contains []string
	stages   []string
	code     schemas.ErrorCode
	hint     string
}

// rules is evaluated top to bottom; first match wins. Order matters: the
// compound no-token rejection must precede the plain rejection, and message
// rules precede the timeline-only remote-exception rule so that a specific
// message is never shadowed by an incidental exception stage.
var rules = []rule{
	{
		contains: []string{"Login session not detected"},
		code:     schemas.CodeLoginRequired,
		hint:     "log in to acmicpc.net in the automated browser profile and retry",
	},
	{
		contains: []string{"load timed out"},
		code:     schemas.CodePageLoadTimeout,
		hint:     "the judge was slow to respond; retry, or raise judge.page_load_timeout",
	},
	{
		contains: []string{"Cloudflare verification timeout"},
		code:     schemas.CodeTurnstileTimeout,
		hint:     "the anti-bot challenge never produced a token; wait a minute and retry",
	},
	{
		contains: []string{"Cloudflare blocked status lookup"},
		code:     schemas.CodeStatusLookupBlocked,
		hint:     "the submission may have gone through; check the status page manually",
	},
	{
		contains: []string{"Problem id not found"},
		code:     schemas.CodeProblemIDMissing,
		hint:     "pass an explicit problem id; the submit page did not expose one",
	},
	{
		contains: []string{"rejected by server"},
		stages:   []string{judge.StageTurnstileMissing},
		code:     schemas.CodeSubmitRejectedNoToken,
		hint:     "the page loaded without its anti-bot widget; reload the submit page and retry",
	},
	{
		contains: []string{"rejected by server"},
		code:     schemas.CodeSubmitRejected,
		hint:     "verify the language id and source, then retry from the submit page",
	},
	{
		stages: []string{judge.StageException},
		code:   schemas.CodeRemoteException,
		hint:   "unexpected page script failure; retry, and report if it persists",
	},
	// Catch-all. Must stay last and unconditioned so Classify is total.
	{
		code: schemas.CodeUnknown,
		hint: "retry; if the failure repeats, file an issue with the debug timeline",
	},
}

// Classify resolves a failure to exactly one taxonomy entry. It is
// deterministic and total: the trailing catch-all guarantees a result for
// any (message, timeline) pair, including a nil timeline.
func Classify(message string, tl *timeline.Timeline) schemas.Classification {
	for _, r := range rules {
		if r.matches(message, tl) {
			return schemas.Classification{Code: r.code, Hint: r.hint}
		}
	}
	// Unreachable: the catch-all matches everything.
	return schemas.Classification{Code: schemas.CodeUnknown, Hint: "retry"}
}

func (r rule) matches(message string, tl *timeline.Timeline) bool {
	for _, sub := range r.contains {
		if !strings.Contains(message, sub) {
			return false
		}
	}
	for _, stage := range r.stages {
		if tl == nil || !tl.Has(stage) {
			return false
		}
	}
	return true
}
