// Package judge encodes what the Baekjoon Online Judge actually speaks: URL
// shapes, the submit form encoding, the acceptance heuristic and the status
// table scrape. Everything here is pure and independently testable; the
// browser bridge composes these pieces inside the page context.
package judge

import (
	"net/url"
	"regexp"
)

// BaseURL is the judge origin all submission traffic targets.
const BaseURL = "https://www.acmicpc.net"

// LoginPath marks the login redirect an expired session lands on.
const LoginPath = "/login"

// Page body markers. The judge gives no structured acknowledgment, so
// acceptance and blocking are inferred from these.
const (
	// StatusTableMarker appears in the status listing markup.
	StatusTableMarker = "status-table"
	// StatusHeaderMarker is the Korean "submission number" column header,
	// a second signal for the same listing.
	StatusHeaderMarker = "채점 번호"
)

// ChallengeMarkers indicate a Cloudflare interstitial instead of the status
// listing. Their presence means the lookup was blocked, not that the
// submission failed.
var ChallengeMarkers = []string{"cf-turnstile", "Just a moment", "Cloudflare"}

// TurnstileFieldName is the hidden input the Cloudflare widget fills in once
// its challenge passes.
const TurnstileFieldName = "cf-turnstile-response"

// Turnstile polling parameters: the in-page protocol waits at most
// TokenPollAttempts * TokenPollIntervalMs (~10s) for a token to appear.
const (
	TokenPollIntervalMs = 200
	TokenPollAttempts   = 50
)

// Timeline stage names shared by the in-page protocol and the classifier.
const (
	StageSessionOpen      = "session_open"
	StageLoadComplete     = "load_complete"
	StageTurnstileWait    = "turnstile_wait"
	StageTurnstileMissing = "turnstile_missing"
	StageTurnstileToken   = "turnstile_token"
	StageSubmitPost       = "submit_post"
	StageAccepted         = "accepted"
	StageStatusLookup     = "status_lookup"
	StageException        = "exception"
)

// Canonical failure messages. The in-page protocol returns these verbatim
// and the classifier matches on their distinctive substrings, so the two
// must stay in sync through these constants.
const (
	MsgLoginRequired       = "Login session not detected. Please log in to Baekjoon again and retry."
	MsgPageLoadTimeout     = "Submit page load timed out."
	MsgTurnstileTimeout    = "Cloudflare verification timeout. Please refresh the submit page and retry."
	MsgProblemIDMissing    = "Problem id not found on submit page."
	MsgSubmitRejected      = "Submission was rejected by server. Please retry from the submit page."
	MsgStatusLookupBlocked = "Cloudflare blocked status lookup. Open status page manually and retry later."
)

// SubmitURL returns the submit page (and form target) for a problem.
func SubmitURL(problemID string) string {
	return BaseURL + "/submit/" + url.PathEscape(problemID)
}

// StatusURL returns the status listing scoped to the given problem, limited
// to the most recent entry, and filtered to the user when known.
func StatusURL(problemID, username string) string {
	q := url.Values{}
	q.Set("from_mine", "1")
	q.Set("problem_id", problemID)
	q.Set("limit", "1")
	if username != "" {
		q.Set("user_id", username)
	}
	return BaseURL + "/status?" + q.Encode()
}

var problemPathRe = regexp.MustCompile(`/submit/(\d+)`)

// ProblemIDFromPath extracts the numeric problem id from a submit page path.
// It returns "" when the path does not carry one.
func ProblemIDFromPath(path string) string {
	m := problemPathRe.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}
