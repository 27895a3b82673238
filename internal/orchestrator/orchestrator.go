// Package orchestrator coordinates one submission attempt end to end: it
// opens an ephemeral browser session against the submit page, hands the
// in-page protocol to the bridge, classifies any failure into the stable
// taxonomy, and guarantees the session is torn down on every exit path.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/api/schemas"
	"github.com/kimday0326/boj-editor/internal/classify"
	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/judge"
	"github.com/kimday0326/boj-editor/internal/timeline"
)

// sessionOpener abstracts the browser manager for tests.
type sessionOpener interface {
	OpenSession(ctx context.Context, targetURL string, timeout time.Duration) (schemas.Session, error)
}

// executionBridge abstracts the in-page protocol for tests.
type executionBridge interface {
	Submit(ctx context.Context, sess schemas.Session, params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error)
	FetchSubmitPageData(ctx context.Context, sess schemas.Session) (*schemas.SubmitPageData, error)
}

// Orchestrator serves the two operations of the submission API. Attempts are
// independent: each gets its own session and timeline, so concurrent calls
// share nothing but the browser process.
type Orchestrator struct {
	logger  *zap.Logger
	cfg     *config.Config
	browser sessionOpener
	bridge  executionBridge
}

// New wires an orchestrator from its collaborators.
func New(logger *zap.Logger, cfg *config.Config, mgr sessionOpener, br executionBridge) *Orchestrator {
	return &Orchestrator{
		logger:  logger.Named("orchestrator"),
		cfg:     cfg,
		browser: mgr,
		bridge:  br,
	}
}

// Submit runs one submission attempt. The returned error, if any, is always
// a *schemas.SubmitError carrying a stable code and formatted message.
func (o *Orchestrator) Submit(ctx context.Context, params schemas.SubmitParams) (*schemas.SubmitResult, error) {
	tl := timeline.New()
	log := o.logger.With(zap.String("problem_id", params.ProblemID))

	if params.CodeOpen == "" {
		params.CodeOpen = o.cfg.Judge.CodeOpen
	}
	if params.Username == "" {
		params.Username = o.cfg.Judge.Username
	}

	sess, err := o.browser.OpenSession(ctx, judge.SubmitURL(params.ProblemID), o.cfg.Judge.PageLoadTimeout)
	if err != nil {
		log.Warn("Session open failed", zap.Error(err))
		return nil, o.fail(err, tl)
	}
	// Exactly one teardown on every path from here on, including panics in
	// the bridge.
	defer sess.Close()

	tl.MarkDetails(judge.StageSessionOpen, map[string]any{"session_id": sess.ID()})
	tl.MarkDetails(judge.StageLoadComplete, map[string]any{"url": sess.FinalURL()})

	result, err := o.bridge.Submit(ctx, sess, params, tl)
	if err != nil {
		log.Warn("Submission failed", zap.Error(err), zap.Int("timeline_len", tl.Len()))
		return nil, o.fail(err, tl)
	}

	log.Info("Submission accepted",
		zap.String("submission_id", result.SubmissionID),
		zap.String("status_url", result.StatusURL))
	return result, nil
}

// FetchSubmitPage opens the submit page and scrapes its language options.
func (o *Orchestrator) FetchSubmitPage(ctx context.Context, problemID string) (*schemas.SubmitPageData, error) {
	tl := timeline.New()

	sess, err := o.browser.OpenSession(ctx, judge.SubmitURL(problemID), o.cfg.Judge.PageLoadTimeout)
	if err != nil {
		return nil, o.fail(err, tl)
	}
	defer sess.Close()

	tl.Mark(judge.StageSessionOpen)

	data, err := o.bridge.FetchSubmitPageData(ctx, sess)
	if err != nil {
		return nil, o.fail(err, tl)
	}
	return data, nil
}

// fail converts a raw failure into the classified, display-ready error.
func (o *Orchestrator) fail(err error, tl *timeline.Timeline) *schemas.SubmitError {
	c := classify.Classify(err.Error(), tl)
	return &schemas.SubmitError{
		Message: c.Format(err.Error()),
		Code:    c.Code,
	}
}
