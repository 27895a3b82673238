package judge

import (
	"net/url"

	"github.com/kimday0326/boj-editor/api/schemas"
)

// DefaultCodeOpen is the visibility applied when the caller leaves the flag
// empty. The judge treats "close" as private source.
const DefaultCodeOpen = "close"

// EncodeSubmitForm builds the application/x-www-form-urlencoded body for a
// submission. The token is omitted entirely when empty; some flows never
// render the turnstile field and the server accepts tokenless posts there.
func EncodeSubmitForm(params schemas.SubmitParams, token string) url.Values {
	codeOpen := params.CodeOpen
	if codeOpen == "" {
		codeOpen = DefaultCodeOpen
	}

	form := url.Values{}
	form.Set("problem_id", params.ProblemID)
	form.Set("language", params.LanguageID)
	form.Set("code_open", codeOpen)
	form.Set("source", params.SourceCode)
	if token != "" {
		form.Set(TurnstileFieldName, token)
	}
	return form
}
