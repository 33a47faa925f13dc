package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// Session is one live, controllable browser tab. A session is owned by
// exactly one caller between Acquire and Release; it is never shared
// across concurrent extractions.
type Session struct {
	id         string
	crashed    bool
	currentURL string

	// drive navigates to a URL, waits for the wait selector, and returns
	// the rendered markup. reset returns the tab to a blank page. Both
	// are injected by the pool's session factory so pool behavior is
	// testable without a browser.
	drive func(ctx context.Context, url, wait string) (string, error)
	reset func(ctx context.Context) error
	close func()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CurrentURL returns the target the session last navigated to, or "" for
// a fresh or reset session.
func (s *Session) CurrentURL() string { return s.currentURL }

// Crashed reports whether the underlying browser became unresponsive.
func (s *Session) Crashed() bool { return s.crashed }

// chromedpSession wires a Session to a real chromedp tab context.
func chromedpSession(id string, allocCtx context.Context, timeout time.Duration) *Session {
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{id: id}
	s.drive = func(ctx context.Context, url, wait string) (string, error) {
		if wait == "" {
			wait = "body"
		}

		navCtx, cancel := context.WithTimeout(tabCtx, timeout)
		defer cancel()
		stop := propagate(ctx, cancel)
		defer stop()

		var html string
		err := chromedp.Run(navCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady(wait, chromedp.ByQuery),
			chromedp.OuterHTML("html", &html),
		)
		if err != nil {
			return "", classifyNavError(err, ctx, tabCtx)
		}
		return html, nil
	}
	s.reset = func(ctx context.Context) error {
		resetCtx, cancel := context.WithTimeout(tabCtx, 5*time.Second)
		defer cancel()
		return chromedp.Run(resetCtx, chromedp.Navigate("about:blank"))
	}
	s.close = tabCancel
	return s
}

// propagate cancels fn when ctx is done, and returns a stop func.
func propagate(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// classifyNavError maps a chromedp failure onto the pipeline taxonomy:
// caller cancellation passes through, a missed deadline is a navigation
// timeout, and a dead tab context means the browser process is gone.
func classifyNavError(err error, callerCtx, tabCtx context.Context) error {
	if callerCtx.Err() != nil {
		return callerCtx.Err()
	}
	if tabCtx.Err() != nil {
		return eris.Wrap(model.ErrSessionCrashed, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrap(model.ErrNavigationTimeout, err.Error())
	}
	return eris.Wrap(model.ErrSessionCrashed, err.Error())
}
