package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Options configure one Chrome session. Proxy and UserAgent come from the
// account record and stay fixed for the session's lifetime.
type Options struct {
	Proxy      string
	UserAgent  string
	Headless   bool
	NavTimeout time.Duration
}

// Chrome drives a real Chrome instance over CDP.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration
	log         *zap.Logger
}

func NewChrome(parent context.Context, opts Options, log *zap.Logger) (*Chrome, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		proxy := opts.Proxy
		if !strings.HasPrefix(proxy, "http://") && !strings.HasPrefix(proxy, "https://") {
			proxy = "http://" + proxy
		}
		allocOpts = append(allocOpts, chromedp.ProxyServer(proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Spawns the browser process; a session that cannot start is a
	// provisioning failure for this account, not a batch failure.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}

	log.Info("browser session started",
		zap.Bool("headless", opts.Headless),
		zap.String("proxy", opts.Proxy),
	)
	return &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		navTimeout:  navTimeout,
		log:         log,
	}, nil
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	tctx, tcancel := c.session(ctx, c.navTimeout)
	defer tcancel()

	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Fill(ctx context.Context, selector, value string) error {
	tctx, tcancel := c.session(ctx, 30*time.Second)
	defer tcancel()

	return chromedp.Run(tctx,
		chromedp.WaitVisible(selector, byFor(selector)),
		chromedp.SendKeys(selector, value, byFor(selector)),
	)
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	tctx, tcancel := c.session(ctx, 30*time.Second)
	defer tcancel()

	return chromedp.Run(tctx, chromedp.Click(selector, byFor(selector)))
}

func (c *Chrome) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	tctx, tcancel := c.session(ctx, timeout)
	defer tcancel()

	return chromedp.Run(tctx, chromedp.WaitVisible(selector, byFor(selector)))
}

// WaitURL polls the page location until it matches the pattern. Client-side
// routers rewrite the URL without a navigation event, so watching location is
// the reliable signal.
func (c *Chrome) WaitURL(ctx context.Context, pattern string, timeout time.Duration) error {
	tctx, tcancel := c.session(ctx, timeout)
	defer tcancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		var loc string
		if err := chromedp.Run(tctx, chromedp.Location(&loc)); err != nil {
			return fmt.Errorf("wait for %s: %w", pattern, err)
		}
		if MatchURL(pattern, loc) {
			return nil
		}
		select {
		case <-tctx.Done():
			return fmt.Errorf("wait for %s: %w", pattern, tctx.Err())
		case <-ticker.C:
		}
	}
}

// Evaluate runs js in the page context and decodes the result into out.
// Promises are awaited, so in-page fetch chains resolve before returning.
func (c *Chrome) Evaluate(ctx context.Context, js string, out any) error {
	tctx, tcancel := c.session(ctx, 60*time.Second)
	defer tcancel()

	return chromedp.Run(tctx, chromedp.Evaluate(js, out,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true).WithReturnByValue(true)
		},
	))
}

func (c *Chrome) Close() error {
	c.cancel()
	c.allocCancel()
	c.log.Info("browser session closed")
	return nil
}

// session bounds a browser action by both the caller's context and a timeout,
// while still executing on the chromedp session context.
func (c *Chrome) session(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tctx, tcancel := context.WithTimeout(c.ctx, timeout)
	stop := context.AfterFunc(ctx, tcancel)
	return tctx, func() {
		stop()
		tcancel()
	}
}

// byFor picks the query strategy: XPath selectors start with a slash,
// everything else is CSS.
func byFor(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
