package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/api/schemas"
	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/judge"
	"github.com/kimday0326/boj-editor/internal/timeline"
)

type fakeSession struct {
	id       string
	finalURL string
	closed   int
}

func (f *fakeSession) ID() string               { return f.id }
func (f *fakeSession) FinalURL() string         { return f.finalURL }
func (f *fakeSession) Context() context.Context { return context.Background() }
func (f *fakeSession) Close()                   { f.closed++ }

type fakeOpener struct {
	sess      *fakeSession
	err       error
	openedURL string
	timeout   time.Duration
}

func (f *fakeOpener) OpenSession(ctx context.Context, targetURL string, timeout time.Duration) (schemas.Session, error) {
	f.openedURL = targetURL
	f.timeout = timeout
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

type fakeExecBridge struct {
	submit func(params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error)
	fetch  func() (*schemas.SubmitPageData, error)
}

func (f *fakeExecBridge) Submit(ctx context.Context, sess schemas.Session, params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
	return f.submit(params, tl)
}

func (f *fakeExecBridge) FetchSubmitPageData(ctx context.Context, sess schemas.Session) (*schemas.SubmitPageData, error) {
	if f.fetch == nil {
		return nil, errors.New("not implemented")
	}
	return f.fetch()
}

func newTestOrchestrator(opener *fakeOpener, br *fakeExecBridge) *Orchestrator {
	return New(zap.NewNop(), config.NewDefaultConfig(), opener, br)
}

func TestSubmit_Success(t *testing.T) {
	sess := &fakeSession{id: "sess-1", finalURL: "https://www.acmicpc.net/submit/1000"}
	opener := &fakeOpener{sess: sess}
	br := &fakeExecBridge{
		submit: func(params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
			return &schemas.SubmitResult{
				SubmissionID: "91234567",
				StatusURL:    judge.StatusURL(params.ProblemID, params.Username),
			}, nil
		},
	}
	o := newTestOrchestrator(opener, br)

	result, err := o.Submit(context.Background(), schemas.SubmitParams{
		ProblemID:  "1000",
		LanguageID: "95",
		SourceCode: "print(sum(map(int, input().split())))",
		Username:   "tester",
	})

	require.NoError(t, err)
	assert.Equal(t, "91234567", result.SubmissionID)
	assert.Equal(t, "https://www.acmicpc.net/submit/1000", opener.openedURL)
	assert.Equal(t, 1, sess.closed, "session must be torn down exactly once")
}

func TestSubmit_DefaultsFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Judge.Username = "confuser"
	cfg.Judge.CodeOpen = "open"

	sess := &fakeSession{id: "sess-1"}
	opener := &fakeOpener{sess: sess}
	var got schemas.SubmitParams
	br := &fakeExecBridge{
		submit: func(params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
			got = params
			return &schemas.SubmitResult{SubmissionID: "1"}, nil
		},
	}
	o := New(zap.NewNop(), cfg, opener, br)

	_, err := o.Submit(context.Background(), schemas.SubmitParams{
		ProblemID:  "1000",
		LanguageID: "95",
		SourceCode: "x",
	})

	require.NoError(t, err)
	assert.Equal(t, "confuser", got.Username)
	assert.Equal(t, "open", got.CodeOpen)
}

func TestSubmit_ExplicitParamsWinOverConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Judge.Username = "confuser"

	sess := &fakeSession{id: "sess-1"}
	opener := &fakeOpener{sess: sess}
	var got schemas.SubmitParams
	br := &fakeExecBridge{
		submit: func(params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
			got = params
			return &schemas.SubmitResult{SubmissionID: "1"}, nil
		},
	}
	o := New(zap.NewNop(), cfg, opener, br)

	_, err := o.Submit(context.Background(), schemas.SubmitParams{
		ProblemID:  "1000",
		LanguageID: "95",
		SourceCode: "x",
		Username:   "caller",
		CodeOpen:   "onlyaccepted",
	})

	require.NoError(t, err)
	assert.Equal(t, "caller", got.Username)
	assert.Equal(t, "onlyaccepted", got.CodeOpen)
}

func TestSubmit_SessionOpenFailureIsClassified(t *testing.T) {
	opener := &fakeOpener{err: errors.New(judge.MsgLoginRequired)}
	o := newTestOrchestrator(opener, &fakeExecBridge{})

	_, err := o.Submit(context.Background(), schemas.SubmitParams{ProblemID: "1000"})

	require.Error(t, err)
	var subErr *schemas.SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, schemas.CodeLoginRequired, subErr.Code)
	assert.Contains(t, subErr.Message, "[LOGIN_REQUIRED]")
	assert.Contains(t, subErr.Message, judge.MsgLoginRequired)
}

func TestSubmit_PageLoadTimeoutIsClassified(t *testing.T) {
	opener := &fakeOpener{err: errors.New(judge.MsgPageLoadTimeout)}
	o := newTestOrchestrator(opener, &fakeExecBridge{})

	_, err := o.Submit(context.Background(), schemas.SubmitParams{ProblemID: "1000"})

	var subErr *schemas.SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, schemas.CodePageLoadTimeout, subErr.Code)
}

func TestSubmit_BridgeFailureClosesSessionOnce(t *testing.T) {
	sess := &fakeSession{id: "sess-1"}
	opener := &fakeOpener{sess: sess}
	br := &fakeExecBridge{
		submit: func(params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
			return nil, errors.New(judge.MsgTurnstileTimeout)
		},
	}
	o := newTestOrchestrator(opener, br)

	_, err := o.Submit(context.Background(), schemas.SubmitParams{ProblemID: "1000"})

	var subErr *schemas.SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, schemas.CodeTurnstileTimeout, subErr.Code)
	assert.Equal(t, 1, sess.closed)
}

func TestSubmit_TimelineStagesRecordedBeforeBridge(t *testing.T) {
	sess := &fakeSession{id: "sess-9", finalURL: "https://www.acmicpc.net/submit/2557"}
	opener := &fakeOpener{sess: sess}
	var seen *timeline.Timeline
	br := &fakeExecBridge{
		submit: func(params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
			seen = tl
			return &schemas.SubmitResult{SubmissionID: "1"}, nil
		},
	}
	o := newTestOrchestrator(opener, br)

	_, err := o.Submit(context.Background(), schemas.SubmitParams{ProblemID: "2557"})

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.Has(judge.StageSessionOpen))
	assert.True(t, seen.Has(judge.StageLoadComplete))
}

func TestSubmit_UsesConfiguredPageLoadTimeout(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Judge.PageLoadTimeout = 3 * time.Second

	sess := &fakeSession{id: "sess-1"}
	opener := &fakeOpener{sess: sess}
	br := &fakeExecBridge{
		submit: func(params schemas.SubmitParams, tl *timeline.Timeline) (*schemas.SubmitResult, error) {
			return &schemas.SubmitResult{SubmissionID: "1"}, nil
		},
	}
	o := New(zap.NewNop(), cfg, opener, br)

	_, err := o.Submit(context.Background(), schemas.SubmitParams{ProblemID: "1000"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, opener.timeout)
}

func TestFetchSubmitPage_Success(t *testing.T) {
	sess := &fakeSession{id: "sess-1"}
	opener := &fakeOpener{sess: sess}
	br := &fakeExecBridge{
		fetch: func() (*schemas.SubmitPageData, error) {
			return &schemas.SubmitPageData{
				LanguageOptions: []schemas.LanguageOption{{ID: "95", Name: "Python 3"}},
			}, nil
		},
	}
	o := newTestOrchestrator(opener, br)

	data, err := o.FetchSubmitPage(context.Background(), "1000")

	require.NoError(t, err)
	require.Len(t, data.LanguageOptions, 1)
	assert.Equal(t, "Python 3", data.LanguageOptions[0].Name)
	assert.Equal(t, 1, sess.closed)
}

func TestFetchSubmitPage_FailureIsClassified(t *testing.T) {
	sess := &fakeSession{id: "sess-1"}
	opener := &fakeOpener{sess: sess}
	br := &fakeExecBridge{
		fetch: func() (*schemas.SubmitPageData, error) {
			return nil, errors.New(judge.MsgLoginRequired)
		},
	}
	o := newTestOrchestrator(opener, br)

	_, err := o.FetchSubmitPage(context.Background(), "1000")

	var subErr *schemas.SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, schemas.CodeLoginRequired, subErr.Code)
	assert.Equal(t, 1, sess.closed)
}
