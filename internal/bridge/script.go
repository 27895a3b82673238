package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"text/template"

	"github.com/kimday0326/boj-editor/api/schemas"
	"github.com/kimday0326/boj-editor/internal/judge"
)

// The submission protocol runs inside the judge page itself: the turnstile
// token only ever materializes in the page's DOM, and the POST must ride the
// page's cookie jar. The protocol is rendered from this template and
// evaluated in the page's main world; it resolves to a single result object
// carrying its own debug timeline and never throws past its catch.
var submitScriptTmpl = template.Must(template.New("submit_protocol").Parse(`
(async () => {
  const args = {{.ArgsJSON}};
  const timeline = [];
  const mark = (stage, details) => {
    timeline.push(details === undefined
      ? { stage, timestampMs: Date.now() }
      : { stage, timestampMs: Date.now(), details });
  };
  const fail = (message) => ({ error: message, debugTimeline: timeline });
  const sleep = (ms) => new Promise((resolve) => setTimeout(resolve, ms));

  try {
    const resolvedProblemId =
      String(args.problemId || '').trim() ||
      (window.location.pathname.match(/\/submit\/(\d+)/) || [])[1] || '';
    if (!resolvedProblemId) {
      return fail({{.MsgProblemIDMissing}});
    }

    let token = null;
    const field = document.querySelector('input[name={{.TurnstileField}}]');
    if (!field) {
      mark({{.StageTurnstileMissing}});
    } else {
      mark({{.StageTurnstileWait}});
      token = (field.value || '').trim() || null;
      for (let i = 0; !token && i < {{.PollAttempts}}; i++) {
        await sleep({{.PollIntervalMs}});
        const next = document.querySelector('input[name={{.TurnstileField}}]');
        token = (next && next.value || '').trim() || null;
      }
      if (!token) {
        return fail({{.MsgTurnstileTimeout}});
      }
      mark({{.StageTurnstileToken}});
    }

    const form = new URLSearchParams();
    form.set('problem_id', resolvedProblemId);
    form.set('language', String(args.languageId));
    form.set('code_open', args.codeOpen || 'close');
    form.set('source', args.sourceCode);
    if (token) {
      form.set({{.TurnstileField}}, token);
    }

    const submitUrl = {{.BaseURL}} + '/submit/' + resolvedProblemId;
    const response = await fetch(submitUrl, {
      method: 'POST',
      headers: { 'Content-Type': 'application/x-www-form-urlencoded' },
      body: form.toString(),
      credentials: 'include',
      redirect: 'follow',
    });
    mark({{.StageSubmitPost}}, { status: response.status, url: response.url });

    const responseText = await response.text();
    const redirectedToStatus = response.redirected && response.url.includes('/status');
    const finalUrlIsStatus = response.url.includes('/status');
    const bodyLooksLikeStatus =
      responseText.includes({{.StatusTableMarker}}) || responseText.includes({{.StatusHeaderMarker}});

    if (!redirectedToStatus && !finalUrlIsStatus && !bodyLooksLikeStatus) {
      return fail({{.MsgSubmitRejected}});
    }
    mark({{.StageAccepted}});

    const statusUrl = new URL({{.BaseURL}} + '/status');
    statusUrl.searchParams.set('from_mine', '1');
    statusUrl.searchParams.set('problem_id', resolvedProblemId);
    statusUrl.searchParams.set('limit', '1');
    if (args.username) {
      statusUrl.searchParams.set('user_id', args.username);
    }

    const statusResponse = await fetch(statusUrl.toString(), {
      method: 'GET',
      credentials: 'include',
    });
    const statusHtml = await statusResponse.text();
    mark({{.StageStatusLookup}}, { status: statusResponse.status });

    if ({{.ChallengeMarkers}}.some((marker) => statusHtml.includes(marker))) {
      return fail({{.MsgStatusLookupBlocked}});
    }

    return {
      ok: true,
      statusHtml,
      statusUrl: statusUrl.toString(),
      debugTimeline: timeline,
    };
  } catch (err) {
    mark({{.StageException}}, { message: String((err && err.message) || err) });
    return fail(String((err && err.message) || err));
  }
})()
`))

// fetchScript scrapes the submit page's language <select>. The login check
// repeats here: the session may silently lose its cookies between the load
// check and the scrape.
var fetchScriptTmpl = template.Must(template.New("fetch_submit_page").Parse(`
(() => {
  if (window.location.pathname.includes({{.LoginPath}})) {
    return { error: {{.MsgLoginRequired}} };
  }
  const languageOptions = [];
  const langSelect = document.querySelector('select[name="language"]');
  if (langSelect) {
    for (const option of langSelect.options) {
      const id = (option.value || '').trim();
      const name = (option.textContent || '').trim();
      if (id && name) {
        languageOptions.push({ id, name });
      }
    }
  }
  return { languageOptions };
})()
`))

// js quotes v as a JavaScript string literal. strconv.Quote escapes
// non-ASCII as \uXXXX, which JS accepts unchanged.
func js(v string) string { return strconv.Quote(v) }

// renderSubmitScript produces the in-page protocol for one attempt.
func renderSubmitScript(params schemas.SubmitParams) (string, error) {
	argsJSON, err := json.Marshal(map[string]string{
		"problemId":  params.ProblemID,
		"languageId": params.LanguageID,
		"sourceCode": params.SourceCode,
		"codeOpen":   params.CodeOpen,
		"username":   params.Username,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submit args: %w", err)
	}

	markersJSON, err := json.Marshal(judge.ChallengeMarkers)
	if err != nil {
		return "", fmt.Errorf("failed to encode challenge markers: %w", err)
	}

	data := map[string]string{
		"ArgsJSON":           string(argsJSON),
		"BaseURL":            js(judge.BaseURL),
		"TurnstileField":     js(judge.TurnstileFieldName),
		"PollIntervalMs":     strconv.Itoa(judge.TokenPollIntervalMs),
		"PollAttempts":       strconv.Itoa(judge.TokenPollAttempts),
		"StatusTableMarker":  js(judge.StatusTableMarker),
		"StatusHeaderMarker": js(judge.StatusHeaderMarker),
		"ChallengeMarkers":   string(markersJSON),

		"MsgProblemIDMissing":    js(judge.MsgProblemIDMissing),
		"MsgTurnstileTimeout":    js(judge.MsgTurnstileTimeout),
		"MsgSubmitRejected":      js(judge.MsgSubmitRejected),
		"MsgStatusLookupBlocked": js(judge.MsgStatusLookupBlocked),

		"StageTurnstileMissing": js(judge.StageTurnstileMissing),
		"StageTurnstileWait":    js(judge.StageTurnstileWait),
		"StageTurnstileToken":   js(judge.StageTurnstileToken),
		"StageSubmitPost":       js(judge.StageSubmitPost),
		"StageAccepted":         js(judge.StageAccepted),
		"StageStatusLookup":     js(judge.StageStatusLookup),
		"StageException":        js(judge.StageException),
	}

	var buf bytes.Buffer
	if err := submitScriptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render submit protocol: %w", err)
	}
	return buf.String(), nil
}

// renderFetchScript produces the language-options scrape.
func renderFetchScript() (string, error) {
	var buf bytes.Buffer
	err := fetchScriptTmpl.Execute(&buf, map[string]string{
		"LoginPath":        js(judge.LoginPath),
		"MsgLoginRequired": js(judge.MsgLoginRequired),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render fetch script: %w", err)
	}
	return buf.String(), nil
}
