package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mailbox is a disposable inbox handle issued by the provider.
type Mailbox struct {
	Address string `json:"mailbox"`
	Token   string `json:"token"`
}

type MessageSummary struct {
	ID      string `json:"_id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
}

type Message struct {
	ID       string `json:"_id"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"bodyHtml"`
}

// Client talks to the temp-mail web2 API. One client per account: requests go
// out through the account's proxy with the account's user agent so mailbox
// traffic matches the browser traffic.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, proxy, userAgent string, log *zap.Logger) (*Client, error) {
	transport := &http.Transport{}
	if proxy != "" {
		if !strings.HasPrefix(proxy, "http://") && !strings.HasPrefix(proxy, "https://") {
			proxy = "http://" + proxy
		}
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		log: log,
	}, nil
}

// CreateMailbox provisions a fresh disposable inbox.
func (c *Client) CreateMailbox(ctx context.Context) (*Mailbox, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mailbox", nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailbox provider unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mailbox provider returned %d: %s", resp.StatusCode, string(body))
	}

	var mb Mailbox
	if err := json.NewDecoder(resp.Body).Decode(&mb); err != nil {
		return nil, err
	}
	if mb.Address == "" || mb.Token == "" {
		return nil, fmt.Errorf("mailbox provider returned an incomplete mailbox")
	}
	c.log.Info("temporary mailbox created", zap.String("address", mb.Address))
	return &mb, nil
}

// ListMessages returns inbox message summaries, newest first. An empty inbox
// is not an error: the provider answers 404 until the first message lands.
func (c *Client) ListMessages(ctx context.Context, mb *Mailbox) ([]MessageSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messages", nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req, mb.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailbox provider unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mailbox provider returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Messages []MessageSummary `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

// FetchMessage retrieves one full message, including its HTML body.
func (c *Client) FetchMessage(ctx context.Context, mb *Mailbox, messageID string) (*Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/messages/%s", c.baseURL, messageID), nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req, mb.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailbox provider unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mailbox provider returned %d: %s", resp.StatusCode, string(body))
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// WaitForVerificationLink polls the inbox until a message carrying a
// verification link arrives or the timeout elapses.
func (c *Client) WaitForVerificationLink(ctx context.Context, mb *Mailbox, timeout, interval time.Duration) (string, error) {
	c.log.Info("waiting for verification email", zap.String("address", mb.Address))

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		messages, err := c.ListMessages(ctx, mb)
		if err != nil {
			c.log.Warn("inbox poll failed", zap.Error(err))
		}
		if len(messages) > 0 {
			latest := messages[0]
			c.log.Info("email received", zap.String("subject", latest.Subject))

			msg, err := c.FetchMessage(ctx, mb, latest.ID)
			if err != nil {
				c.log.Warn("message fetch failed", zap.Error(err))
			} else if msg.BodyHTML != "" {
				if link, ok := ExtractVerificationLink(msg.BodyHTML); ok {
					c.log.Info("verification link found")
					return link, nil
				}
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no verification link within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) decorate(req *http.Request, bearer string) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}
