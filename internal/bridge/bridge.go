// Package bridge executes the multi-step submission protocol inside a
// session's page context and returns a single structured result. It never
// lets a page-side failure escape unstructured: every outcome is either a
// result or an error message with the attempt timeline attached.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/api/schemas"
	"github.com/kimday0326/boj-editor/internal/judge"
	"github.com/kimday0326/boj-editor/internal/timeline"
)

// remotePayload is the wire shape the in-page protocol resolves to.
type remotePayload struct {
	OK            bool                     `json:"ok"`
	StatusHTML    string                   `json:"statusHtml"`
	StatusURL     string                   `json:"statusUrl"`
	Error         string                   `json:"error"`
	DebugTimeline []timeline.Record        `json:"debugTimeline"`
	Options       []schemas.LanguageOption `json:"languageOptions"`
}

// evaluateFunc runs a script in the session's page and decodes the resolved
// value into out. Swapped in tests.
type evaluateFunc func(ctx context.Context, sess schemas.Session, script string, out *remotePayload) error

// Bridge drives the in-page submission protocol.
type Bridge struct {
	logger   *zap.Logger
	evaluate evaluateFunc
}

// New creates a bridge backed by CDP evaluation.
func New(logger *zap.Logger) *Bridge {
	return &Bridge{
		logger:   logger.Named("bridge"),
		evaluate: chromeEvaluate,
	}
}

// chromeEvaluate evaluates the script in the page's main world and awaits
// the resulting promise.
func chromeEvaluate(ctx context.Context, sess schemas.Session, script string, out *remotePayload) error {
	runCtx, cancel := context.WithCancel(sess.Context())
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	return chromedp.Run(runCtx, chromedp.Evaluate(script, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

// Submit runs the four protocol steps (token wait, form POST, acceptance
// heuristic, confirmation lookup) inside the session. The attempt timeline
// is extended with the stages the page recorded. On failure the returned
// error's message is classifiable; the POST may still have succeeded when
// the error is the status-lookup block.
func (b *Bridge) Submit(ctx context.Context, sess schemas.Session, params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
	script, err := renderSubmitScript(params)
	if err != nil {
		return nil, err
	}

	var payload remotePayload
	if err := b.evaluate(ctx, sess, script, &payload); err != nil {
		// The evaluation itself failed (session died, CDP error). Record it
		// the same way the page records its own exceptions.
		tl.MarkDetails(judge.StageException, map[string]any{"message": err.Error()})
		return nil, fmt.Errorf("submit protocol evaluation failed: %w", err)
	}

	tl.Extend(payload.DebugTimeline)

	if payload.Error != "" {
		return nil, errors.New(payload.Error)
	}
	if !payload.OK {
		tl.Mark(judge.StageException)
		return nil, errors.New("submit protocol returned no result")
	}

	// The status listing comes back as raw markup; scraping it here keeps
	// the in-page protocol free of fragile DOM parsing.
	submissionID := judge.ParseSubmissionID(payload.StatusHTML)

	b.logger.Debug("Submission accepted",
		zap.String("submission_id", submissionID),
		zap.String("status_url", payload.StatusURL))

	return &schemas.SubmitResult{
		SubmissionID: submissionID,
		StatusURL:    payload.StatusURL,
	}, nil
}

// FetchSubmitPageData scrapes the language options off the loaded submit
// page.
func (b *Bridge) FetchSubmitPageData(ctx context.Context, sess schemas.Session) (*schemas.SubmitPageData, error) {
	script, err := renderFetchScript()
	if err != nil {
		return nil, err
	}

	var payload remotePayload
	if err := b.evaluate(ctx, sess, script, &payload); err != nil {
		return nil, fmt.Errorf("submit page scrape failed: %w", err)
	}
	if payload.Error != "" {
		return nil, errors.New(payload.Error)
	}

	return &schemas.SubmitPageData{LanguageOptions: payload.Options}, nil
}
