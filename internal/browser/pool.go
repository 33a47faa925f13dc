package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

// Pool maintains a bounded set of live browser sessions. Acquire blocks
// until a session or a creation slot is free; crashed sessions are
// discarded and replaced transparently on the next Acquire.
type Pool struct {
	cfg config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc

	// slots holds size entries. A nil entry is a creation slot: the next
	// Acquire that draws it builds a fresh session.
	slots chan *Session

	factory func(id string) *Session

	mu     sync.Mutex
	closed bool
	seq    int
}

// Option customizes pool construction.
type Option func(*Pool)

// WithSessionFactory replaces the chromedp session factory. Used by tests
// to exercise pool behavior without a browser.
func WithSessionFactory(f func(id string) *Session) Option {
	return func(p *Pool) { p.factory = f }
}

// browserFlags returns the command-line flag overrides applied on top of
// chromedp's defaults. The defaults already ship headless=true, so the
// headless flag is always set explicitly; otherwise turning it off in
// config would be a no-op.
func browserFlags(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		"disable-gpu": true,
		"no-sandbox":  true,
		"headless":    cfg.Headless,
	}
	if cfg.UserAgent != "" {
		flags["user-agent"] = cfg.UserAgent
	}
	return flags
}

// NewPool creates a session pool of the configured size (minimum 1).
// Browser processes are started lazily on first navigation.
func NewPool(cfg config.BrowserConfig, opts ...Option) *Pool {
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}

	execOpts := chromedp.DefaultExecAllocatorOptions[:]
	for name, value := range browserFlags(cfg) {
		execOpts = append(execOpts, chromedp.Flag(name, value))
	}
	if cfg.ChromePath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(cfg.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)

	p := &Pool{
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		slots:       make(chan *Session, size),
	}
	p.factory = func(id string) *Session {
		return chromedpSession(id, p.allocCtx, cfg.NavigationTimeout())
	}

	for range size {
		p.slots <- nil
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser: pool closed")

// Acquire blocks until a session is available or ctx is done. Crashed
// sessions drawn from the pool are replaced with fresh ones.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s := <-p.slots:
		if s != nil && !s.crashed {
			return s, nil
		}
		if s != nil {
			s.close()
		}
		return p.newSession(), nil
	}
}

func (p *Pool) newSession() *Session {
	p.mu.Lock()
	p.seq++
	id := fmt.Sprintf("session-%d", p.seq)
	p.mu.Unlock()

	zap.L().Debug("browser: creating session", zap.String("session_id", id))
	return p.factory(id)
}

// Release returns a session to the pool. The session is reset to a blank
// page first; if the reset fails the session is discarded and its slot
// becomes a creation slot.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}

	if !s.crashed {
		resetCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.reset(resetCtx)
		cancel()
		if err != nil {
			zap.L().Warn("browser: session reset failed, discarding",
				zap.String("session_id", s.id), zap.Error(err))
			s.crashed = true
		}
	}

	if s.crashed {
		s.close()
		s = nil
	} else {
		s.currentURL = ""
	}

	// The closed check and the send must be atomic with respect to
	// Close: a send slipping in after Close drained the channel would
	// leave the session live with no owner. The send never blocks — a
	// Release always follows an Acquire that freed a slot.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if s != nil {
			s.close()
		}
		return
	}
	p.slots <- s
}

// Navigate drives the session to url, waits for the wait selector
// (default "body"), and returns the rendered markup. A missed deadline
// yields ErrNavigationTimeout; an unresponsive browser yields
// ErrSessionCrashed and marks the session for replacement.
func (p *Pool) Navigate(ctx context.Context, s *Session, url, wait string) (string, error) {
	if s.crashed {
		return "", eris.Wrap(model.ErrSessionCrashed, "session already crashed")
	}

	html, err := s.drive(ctx, url, wait)
	if err != nil {
		if errors.Is(err, model.ErrSessionCrashed) {
			s.crashed = true
		}
		return "", err
	}
	s.currentURL = url
	return html, nil
}

// Discard marks a session crashed so Release replaces it. Used when an
// in-flight navigation is abandoned at shutdown.
func (p *Pool) Discard(s *Session) {
	if s != nil {
		s.crashed = true
	}
}

// Close shuts down the pool and the shared browser allocator. Sessions
// still checked out are closed when released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case s := <-p.slots:
			if s != nil {
				s.close()
			}
		default:
			p.allocCancel()
			return
		}
	}
}
