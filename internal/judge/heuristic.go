package judge

import "strings"

// AcceptanceSignals are the three observations the heuristic ORs together.
// The judge answers a successful submission with a redirect to the status
// listing, but intermediate proxies sometimes flatten the redirect, so the
// final URL and the body markup are consulted as fallbacks.
type AcceptanceSignals struct {
	// Redirected reports whether the POST was redirected at all.
	Redirected bool
	// FinalURL is the fully resolved URL after following redirects.
	FinalURL string
	// Body is the final response body.
	Body string
}

// Accepted applies the acceptance heuristic: any one signal is enough.
func Accepted(s AcceptanceSignals) bool {
	if s.Redirected && strings.Contains(s.FinalURL, "/status") {
		return true
	}
	if strings.Contains(s.FinalURL, "/status") {
		return true
	}
	return BodyLooksLikeStatus(s.Body)
}

// BodyLooksLikeStatus reports whether the markup carries either status
// listing marker.
func BodyLooksLikeStatus(body string) bool {
	return strings.Contains(body, StatusTableMarker) ||
		strings.Contains(body, StatusHeaderMarker)
}

// IsChallengePage reports whether the body is a Cloudflare interstitial
// rather than judge content.
func IsChallengePage(body string) bool {
	for _, marker := range ChallengeMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
