// Package stealth reduces the automation fingerprint of a browser session.
// The judge sits behind Cloudflare; an obviously automated profile never
// receives a turnstile token, so every session applies these evasions before
// its first navigation.
package stealth

import (
	"context"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// evasionsJS patches the most commonly probed automation tells before any
// page script runs.
const evasionsJS = `
(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
  if (!window.chrome) { window.chrome = { runtime: {} }; }
  const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
  if (originalQuery) {
    window.navigator.permissions.query = (parameters) =>
      parameters.name === 'notifications'
        ? Promise.resolve({ state: Notification.permission })
        : originalQuery(parameters);
  }
})();
`

// Apply returns an action that installs the evasion script persistently and
// overrides the user agent when one is configured. Failures here are
// reported by chromedp.Run; callers treat them as non-fatal.
func Apply(userAgent string, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(evasionsJS).Do(ctx); err != nil {
			return err
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return err
			}
		}
		if logger != nil {
			logger.Debug("Stealth evasions applied", zap.Bool("ua_override", userAgent != ""))
		}
		return nil
	})
}
