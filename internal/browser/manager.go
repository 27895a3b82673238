// Package browser owns the lifecycle of ephemeral judge sessions: one hidden
// browser tab per submission attempt, opened against the submit page, raced
// against a load timeout, and torn down on every exit path.
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/api/schemas"
	"github.com/kimday0326/boj-editor/internal/browser/stealth"
	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/judge"
)

// Distinguished session-open failures. Their texts are the canonical judge
// messages so the classifier resolves them without special cases.
var (
	ErrPageLoadTimeout = errors.New(judge.MsgPageLoadTimeout)
	ErrLoginRequired   = errors.New(judge.MsgLoginRequired)
)

// DefaultPageLoadTimeout bounds a session open when the caller passes no
// explicit timeout.
const DefaultPageLoadTimeout = 15 * time.Second

// newContextFunc creates an isolated browser context and its cancel func.
// Swapped out in tests to avoid a real browser.
type newContextFunc func(parent context.Context) (context.Context, context.CancelFunc)

// navigateFunc loads targetURL in the given browser context and returns the
// resolved location after load completion.
type navigateFunc func(ctx context.Context, targetURL string) (string, error)

// Manager owns the browser allocator and tracks live sessions so shutdown
// can tear them all down.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex

	newContext newContextFunc
	navigate   navigateFunc
}

// NewManager creates and initializes the browser manager. The allocator is
// lazy: the browser process starts with the first session.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, m.generateAllocatorOptions()...)
	m.newContext = m.newChromeContext
	m.navigate = m.chromeNavigate

	m.logger.Info("Browser manager initialized",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("user_data_dir", cfg.Browser.UserDataDir),
	)
	return m
}

// generateAllocatorOptions configures the flags for the browser executable.
func (m *Manager) generateAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	browserCfg := m.cfg.Browser
	if browserCfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	opts = append(opts,
		// Automation detection evasion; the rest happens in stealth.Apply.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),

		chromedp.Flag("disable-gpu", browserCfg.Headless),
		chromedp.Flag("ignore-certificate-errors", browserCfg.IgnoreTLSErrors),
	)

	// The judge login lives in cookies; a persistent profile carries them
	// across runs.
	if browserCfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(browserCfg.UserDataDir))
	}
	if browserCfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(browserCfg.UserAgent))
	}
	for _, arg := range browserCfg.Args {
		if name, ok := strings.CutPrefix(arg, "--"); ok {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

func (m *Manager) newChromeContext(parent context.Context) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(m.allocatorCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Errorf),
	)
}

// chromeNavigate loads the page and waits for the document body, then reads
// back the resolved location.
func (m *Manager) chromeNavigate(ctx context.Context, targetURL string) (string, error) {
	var finalURL string
	err := chromedp.Run(ctx,
		stealth.Apply(m.cfg.Browser.UserAgent, m.logger),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	return finalURL, err
}

// OpenSession opens a hidden browser session against targetURL and waits for
// load completion, racing it against the timeout. On load it inspects the
// resolved location for the judge's login redirect. Every failure path tears
// the session down before returning; the caller owns teardown only on
// success.
func (m *Manager) OpenSession(ctx context.Context, targetURL string, timeout time.Duration) (schemas.Session, error) {
	if timeout <= 0 {
		timeout = DefaultPageLoadTimeout
	}

	sessCtx, sessCancel := m.newContext(ctx)
	sess := &Session{
		id:        uuid.New().String(),
		targetURL: targetURL,
		state:     StateCreating,
		ctx:       sessCtx,
		cancel:    sessCancel,
		manager:   m,
	}
	sess.logger = m.logger.Named("session").With(zap.String("session_id", sess.id))

	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	sess.setState(StateLoading)
	sess.logger.Debug("Opening session",
		zap.String("target_url", targetURL),
		zap.Duration("timeout", timeout))

	loadCtx, loadCancel := context.WithTimeout(sessCtx, timeout)
	defer loadCancel()

	finalURL, err := m.navigate(loadCtx, targetURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			sess.setState(StateTimedOut)
			sess.Close()
			return nil, ErrPageLoadTimeout
		}
		sess.Close()
		return nil, err
	}

	if strings.Contains(finalURL, judge.LoginPath) {
		sess.setState(StateLoginRedirected)
		sess.logger.Warn("Session redirected to login", zap.String("final_url", finalURL))
		sess.Close()
		return nil, ErrLoginRequired
	}

	sess.finalURL = finalURL
	sess.setState(StateReady)
	return sess, nil
}

// unregister removes the session from the tracking map. Called by
// Session.Close.
func (m *Manager) unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// ActiveSessions returns the number of sessions not yet closed.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes all active sessions and the underlying browser process.
func (m *Manager) Shutdown(ctx context.Context) {
	m.logger.Info("Shutting down browser manager")

	m.mu.Lock()
	toClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		toClose = append(toClose, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range toClose {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline reached with sessions still closing")
	}

	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	m.logger.Info("Browser manager shutdown complete")
}
