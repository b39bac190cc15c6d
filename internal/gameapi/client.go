package gameapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/valley-guardians/autofarm/internal/browser"
	"github.com/valley-guardians/autofarm/internal/config"
	"go.uber.org/zap"
)

// Session is an authenticated API identity. It is only built once a login or
// registration actually produced a token, so holders never need to check for
// missing fields.
type Session struct {
	Token  string
	UserID string
}

// Client issues the target application's API calls from inside the page via
// the session driver, so every request inherits the site's cookies, origin
// and TLS fingerprint.
type Client struct {
	driver     browser.Driver
	baseURL    string
	apiKey     string
	projectRef string
	maxRetries int
	minDelay   time.Duration
	maxDelay   time.Duration
	log        *zap.Logger

	session *Session

	// pacing hook, replaced in tests
	pace func(ctx context.Context)
}

func NewClient(driver browser.Driver, cfg *config.Config, log *zap.Logger) *Client {
	c := &Client{
		driver:     driver,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		projectRef: cfg.ProjectRef(),
		maxRetries: cfg.MaxRetries,
		minDelay:   cfg.MinDelay,
		maxDelay:   cfg.MaxDelay,
		log:        log,
	}
	c.pace = c.randomPause
	return c
}

func (c *Client) SetSession(s Session) { c.session = &s }

func (c *Client) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

type fetchOptions struct {
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

type fetchResult struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
}

// fetch runs an in-page fetch with the configured retry bound. Exhausting the
// bound returns (nil, lastErr); callers treat that as "not confirmed" and
// never let it escalate past the current step.
func (c *Client) fetch(ctx context.Context, url string, opts fetchOptions, verbose bool) (json.RawMessage, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	js := fmt.Sprintf(
		"fetch(%q, %s).then(res => res.text().then(text => ({status: res.status, text: text})))",
		url, optsJSON,
	)
	short := shortName(url)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if verbose {
			c.pace(ctx)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var res fetchResult
		if err := c.driver.Evaluate(ctx, js, &res); err != nil {
			lastErr = err
		} else if res.Status >= 400 {
			lastErr = fmt.Errorf("API returned status %d: %s", res.Status, truncate(res.Text, 200))
		} else {
			if verbose {
				c.log.Info("API call succeeded", zap.String("endpoint", short))
			}
			text := strings.TrimSpace(res.Text)
			if text == "" {
				return json.RawMessage("{}"), nil
			}
			return json.RawMessage(text), nil
		}

		if verbose {
			c.log.Warn("API call failed",
				zap.String("endpoint", short),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.maxRetries),
				zap.Error(lastErr),
			)
		}
	}
	if verbose {
		c.log.Error("all retries exhausted", zap.String("endpoint", short))
	}
	return nil, lastErr
}

func (c *Client) baseHeaders() map[string]string {
	h := map[string]string{"apikey": c.apiKey}
	if c.session != nil {
		h["Authorization"] = "Bearer " + c.session.Token
	}
	return h
}

// AuthResponse is the password-grant login payload. Raw keeps the exact body
// for seeding the front-end's localStorage session.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
	Raw string `json:"-"`
}

// LoginPassword performs the API login fallback.
func (c *Client) LoginPassword(ctx context.Context, email, password string) (*AuthResponse, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	raw, err := c.fetch(ctx, c.baseURL+"/auth/v1/token?grant_type=password", fetchOptions{
		Method: "POST",
		Headers: map[string]string{
			"apikey":       c.apiKey,
			"Content-Type": "application/json",
		},
		Body: string(body),
	}, true)
	if err != nil || raw == nil {
		return nil, fmt.Errorf("password login failed: %w", err)
	}

	var resp AuthResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("login response carries no access token")
	}
	resp.Raw = string(raw)
	return &resp, nil
}

// storageKey is the localStorage slot the front-end keeps its session in.
func (c *Client) storageKey() string {
	return fmt.Sprintf("sb-%s-auth-token", c.projectRef)
}

// ReadLocalSession extracts the session the front-end stored after a UI login
// or verification redirect.
func (c *Client) ReadLocalSession(ctx context.Context) (*Session, error) {
	js := fmt.Sprintf("localStorage.getItem(%q)", c.storageKey())
	var stored *string
	if err := c.driver.Evaluate(ctx, js, &stored); err != nil {
		return nil, fmt.Errorf("read session storage: %w", err)
	}
	if stored == nil || *stored == "" {
		return nil, fmt.Errorf("no session in storage")
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal([]byte(*stored), &payload); err != nil {
		return nil, fmt.Errorf("decode stored session: %w", err)
	}
	if payload.AccessToken == "" || payload.User.ID == "" {
		return nil, fmt.Errorf("stored session is incomplete")
	}
	return &Session{Token: payload.AccessToken, UserID: payload.User.ID}, nil
}

// SeedLocalSession writes an auth payload into the front-end's storage slot so
// subsequent navigation is authenticated.
func (c *Client) SeedLocalSession(ctx context.Context, authJSON string) error {
	encoded, _ := json.Marshal(authJSON)
	js := fmt.Sprintf("localStorage.setItem(%q, %s)", c.storageKey(), encoded)
	return c.driver.Evaluate(ctx, js, nil)
}

// FetchBalance reads the reward-currency balance. A failed probe yields
// (0, false), never an error: balance reads are advisory.
func (c *Client) FetchBalance(ctx context.Context) (int, bool) {
	if c.session == nil {
		return 0, false
	}
	url := fmt.Sprintf("%s/rest/v1/users?select=guardians_coin&id=eq.%s", c.baseURL, c.session.UserID)
	raw, err := c.fetch(ctx, url, fetchOptions{Method: "GET", Headers: c.baseHeaders()}, false)
	if err != nil || raw == nil {
		return 0, false
	}

	var rows []struct {
		GuardiansCoin float64 `json:"guardians_coin"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		return 0, false
	}
	return int(rows[0].GuardiansCoin), true
}

// ClaimResult is the claim RPC's answer. Claimed reflects the explicit
// confirmation flag; a 2xx without it is not a claim.
type ClaimResult struct {
	Claimed    bool `json:"quest_claimed"`
	NewBalance int  `json:"new_balance"`
}

// ClaimQuest issues the reward claim for one quest.
func (c *Client) ClaimQuest(ctx context.Context, questID string, reward int) (*ClaimResult, error) {
	if c.session == nil {
		return nil, fmt.Errorf("no session")
	}
	body, _ := json.Marshal(map[string]any{
		"user_id":       c.session.UserID,
		"quest_id":      questID,
		"reward_amount": reward,
	})
	headers := c.baseHeaders()
	headers["Content-Type"] = "application/json"

	raw, err := c.fetch(ctx, c.baseURL+"/rest/v1/rpc/secure_claim_quest", fetchOptions{
		Method:  "POST",
		Headers: headers,
		Body:    string(body),
	}, true)
	if err != nil || raw == nil {
		return nil, err
	}

	var rows []ClaimResult
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("malformed claim response")
	}
	return &rows[0], nil
}

// BackgroundActivity fires the low-signal read-only calls that shape traffic
// between claims. Errors are swallowed; these must never fail the protocol.
func (c *Client) BackgroundActivity(ctx context.Context) {
	if c.session == nil {
		return
	}
	headers := c.baseHeaders()

	c.fetchQuiet(ctx, c.baseURL+"/auth/v1/user", fetchOptions{Method: "GET", Headers: headers})

	profileHeaders := c.baseHeaders()
	profileHeaders["Accept-Profile"] = "public"
	url := fmt.Sprintf("%s/rest/v1/users?select=*&id=eq.%s", c.baseURL, c.session.UserID)
	c.fetchQuiet(ctx, url, fetchOptions{Method: "GET", Headers: profileHeaders})

	postHeaders := c.baseHeaders()
	postHeaders["Content-Type"] = "application/json"
	c.fetchQuiet(ctx, c.baseURL+"/rest/v1/rpc/get_my_gc", fetchOptions{Method: "POST", Headers: postHeaders, Body: "{}"})
}

func (c *Client) fetchQuiet(ctx context.Context, url string, opts fetchOptions) {
	_, _ = c.fetch(ctx, url, opts, false)
}

func (c *Client) randomPause(ctx context.Context) {
	d := c.minDelay
	if c.maxDelay > c.minDelay {
		d += time.Duration(rand.Int63n(int64(c.maxDelay - c.minDelay)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func shortName(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
