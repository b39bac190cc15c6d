package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/valley-guardians/autofarm/internal/browser"
	"github.com/valley-guardians/autofarm/internal/config"
	"github.com/valley-guardians/autofarm/internal/gameapi"
	"github.com/valley-guardians/autofarm/internal/mailbox"
	"github.com/valley-guardians/autofarm/internal/models"
	"go.uber.org/zap"
)

// MailProvider is the slice of the identity provider the engine needs while
// waiting out a registration.
type MailProvider interface {
	WaitForVerificationLink(ctx context.Context, mb *mailbox.Mailbox, timeout, interval time.Duration) (string, error)
}

// QuestAPI is the authenticated game surface the engine drives. Implemented
// by gameapi.Client; faked in tests.
type QuestAPI interface {
	SetSession(gameapi.Session)
	LoginPassword(ctx context.Context, email, password string) (*gameapi.AuthResponse, error)
	ReadLocalSession(ctx context.Context) (*gameapi.Session, error)
	SeedLocalSession(ctx context.Context, authJSON string) error
	FetchBalance(ctx context.Context) (int, bool)
	ClaimQuest(ctx context.Context, questID string, reward int) (*gameapi.ClaimResult, error)
	BackgroundActivity(ctx context.Context)
}

type DriverFactory func(ctx context.Context, acct *models.Account) (browser.Driver, error)
type MailFactory func(proxy, userAgent string) (MailProvider, error)
type APIFactory func(d browser.Driver) QuestAPI

// Engine drives one account through registration-or-login and gameplay. Every
// failure is contained at the account boundary: a pass either succeeds or
// leaves the record in a terminal failed state, and the batch moves on.
type Engine struct {
	cfg     *config.Config
	catalog []models.Quest
	drivers DriverFactory
	mail    MailFactory
	api     APIFactory
	log     *zap.Logger

	now   func() time.Time
	pause func(ctx context.Context, min, max time.Duration)
}

func New(cfg *config.Config, catalog []models.Quest, drivers DriverFactory, mail MailFactory, api APIFactory, log *zap.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		catalog: catalog,
		drivers: drivers,
		mail:    mail,
		api:     api,
		log:     log,
		now:     time.Now,
		pause:   randomPause,
	}
}

// ProcessAccount runs one full pass for one account, mutating the record in
// place. The returned flag is the only thing that escapes; errors never do.
func (e *Engine) ProcessAccount(ctx context.Context, acct *models.Account) bool {
	log := e.log.With(zap.String("wallet", acct.WalletAddress), zap.String("email", acct.Email))
	log.Info("account pass started", zap.String("proxy", proxyLabel(acct.Proxy)))

	// The reset rule runs exactly once per pass, before gameplay, and only
	// touches the in-memory record.
	if acct.ResetDailyQuests(e.now()) {
		log.Info("daily quests reset", zap.Int("remaining", len(acct.ClaimedQuests)))
	}

	acct.State = models.StateUnregistered
	if err := e.runPass(ctx, acct, log); err != nil {
		acct.State = models.StateFailed
		log.Error("account pass failed", zap.Error(err))
		return false
	}
	log.Info("account pass completed", zap.Int("balance", acct.FinalBalance))
	return true
}

func (e *Engine) runPass(ctx context.Context, acct *models.Account, log *zap.Logger) error {
	driver, err := e.drivers(ctx, acct)
	if err != nil {
		return fmt.Errorf("launch session: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Warn("session close failed", zap.Error(err))
		}
	}()

	api := e.api(driver)

	if acct.HasSession() {
		if err := acct.Transition(models.StateAuthenticating); err != nil {
			return err
		}
		if err := e.authenticate(ctx, driver, api, acct, log); err != nil {
			return fmt.Errorf("login failed after UI and API attempts: %w", err)
		}
	} else {
		if err := e.register(ctx, driver, api, acct, log); err != nil {
			return err
		}
		log.Info("registration successful")
	}

	if err := acct.Transition(models.StateRunningGameplay); err != nil {
		return err
	}
	if err := e.runGameplay(ctx, api, acct, log); err != nil {
		return fmt.Errorf("gameplay: %w", err)
	}
	return acct.Transition(models.StateDone)
}

// register walks a fresh identity through form submission, email verification
// and token extraction.
func (e *Engine) register(ctx context.Context, driver browser.Driver, api QuestAPI, acct *models.Account, log *zap.Logger) error {
	if acct.Mailbox == nil {
		return fmt.Errorf("no mailbox provisioned for new identity")
	}

	if err := acct.Transition(models.StateRegistering); err != nil {
		return err
	}
	if err := e.submitRegistrationForm(ctx, driver, acct, log); err != nil {
		return fmt.Errorf("submit registration form: %w", err)
	}

	if err := acct.Transition(models.StateAwaitingVerification); err != nil {
		return err
	}
	mail, err := e.mail(acct.Proxy, acct.UserAgent)
	if err != nil {
		return fmt.Errorf("mailbox client: %w", err)
	}
	link, err := mail.WaitForVerificationLink(ctx, acct.Mailbox, e.cfg.VerifyTimeout, e.cfg.MailPollEvery)
	if err != nil {
		return fmt.Errorf("verification email: %w", err)
	}

	if err := acct.Transition(models.StateCompletingRegistration); err != nil {
		return err
	}
	if err := e.navigateWithRetries(ctx, driver, link, log); err != nil {
		return fmt.Errorf("open verification link: %w", err)
	}
	log.Info("email verified")

	if err := driver.WaitURL(ctx, "**/social-quest", 60*time.Second); err != nil {
		return fmt.Errorf("wait for authenticated area: %w", err)
	}
	session, err := api.ReadLocalSession(ctx)
	if err != nil {
		return fmt.Errorf("extract session: %w", err)
	}
	e.adoptSession(api, acct, *session)
	return acct.Transition(models.StateAuthenticated)
}

func (e *Engine) submitRegistrationForm(ctx context.Context, driver browser.Driver, acct *models.Account, log *zap.Logger) error {
	refURL := fmt.Sprintf("%s/?modal=register&ref=%s", e.cfg.SiteURL, e.cfg.ReferralCode)
	if err := e.navigateWithRetries(ctx, driver, refURL, log); err != nil {
		return err
	}
	if err := driver.WaitVisible(ctx, "#name", 60*time.Second); err != nil {
		return err
	}

	log.Info("filling registration form", zap.String("email", acct.Email))
	fields := []struct{ sel, value string }{
		{"#name", acct.FullName},
		{"#email", acct.Email},
		{"#password", acct.Password},
		{"#confirmPassword", acct.Password},
		{"#inviteCode", e.cfg.ReferralCode},
	}
	for _, f := range fields {
		if err := driver.Fill(ctx, f.sel, f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.sel, err)
		}
	}
	return driver.Click(ctx, `//form//button[contains(., "Register")]`)
}

// authenticate re-establishes a session for an existing account. Policy: a
// still-valid stored token is reused directly; otherwise UI login first, API
// password grant as the fallback.
func (e *Engine) authenticate(ctx context.Context, driver browser.Driver, api QuestAPI, acct *models.Account, log *zap.Logger) error {
	if gameapi.TokenUsable(acct.BearerToken, e.now()) {
		if err := e.resumeStoredSession(ctx, driver, api, acct, log); err == nil {
			return acct.Transition(models.StateAuthenticated)
		} else {
			log.Warn("stored session rejected, logging in again", zap.Error(err))
		}
	}

	if err := e.loginViaUI(ctx, driver, api, acct, log); err != nil {
		log.Warn("UI login failed, trying API fallback", zap.Error(err))
		if err := e.loginViaAPI(ctx, driver, api, acct, log); err != nil {
			return err
		}
	}
	return acct.Transition(models.StateAuthenticated)
}

func (e *Engine) resumeStoredSession(ctx context.Context, driver browser.Driver, api QuestAPI, acct *models.Account, log *zap.Logger) error {
	userID := acct.UserID
	if userID == "" {
		userID = gameapi.UserIDFromToken(acct.BearerToken)
	}
	if userID == "" {
		return fmt.Errorf("stored token carries no user id")
	}

	if err := e.navigateWithRetries(ctx, driver, e.cfg.SiteURL, log); err != nil {
		return err
	}
	seed := fmt.Sprintf(`{"access_token":%q,"token_type":"bearer","user":{"id":%q}}`, acct.BearerToken, userID)
	if err := api.SeedLocalSession(ctx, seed); err != nil {
		return err
	}
	if err := e.navigateWithRetries(ctx, driver, e.cfg.SiteURL+"/social-quest", log); err != nil {
		return err
	}
	session, err := api.ReadLocalSession(ctx)
	if err != nil {
		return err
	}
	e.adoptSession(api, acct, *session)
	log.Info("stored session resumed")
	return nil
}

func (e *Engine) loginViaUI(ctx context.Context, driver browser.Driver, api QuestAPI, acct *models.Account, log *zap.Logger) error {
	log.Info("attempting UI login")
	if err := e.navigateWithRetries(ctx, driver, e.cfg.SiteURL, log); err != nil {
		return err
	}

	loginButton := `//*[@id="root"]/div[1]/nav/div/div/div[2]/button`
	if err := driver.WaitVisible(ctx, loginButton, 60*time.Second); err != nil {
		return err
	}
	if err := driver.Click(ctx, loginButton); err != nil {
		return err
	}
	if err := driver.WaitVisible(ctx, "#email", 30*time.Second); err != nil {
		return err
	}
	if err := driver.Fill(ctx, "#email", acct.Email); err != nil {
		return err
	}
	if err := driver.Fill(ctx, "#password", acct.Password); err != nil {
		return err
	}
	if err := driver.Click(ctx, `//form//button[@type="submit"]`); err != nil {
		return err
	}
	if err := driver.WaitURL(ctx, "**/social-quest", 60*time.Second); err != nil {
		return err
	}

	session, err := api.ReadLocalSession(ctx)
	if err != nil {
		return err
	}
	e.adoptSession(api, acct, *session)
	log.Info("UI login successful")
	return nil
}

func (e *Engine) loginViaAPI(ctx context.Context, driver browser.Driver, api QuestAPI, acct *models.Account, log *zap.Logger) error {
	resp, err := api.LoginPassword(ctx, acct.Email, acct.Password)
	if err != nil {
		return err
	}
	e.adoptSession(api, acct, gameapi.Session{Token: resp.AccessToken, UserID: resp.User.ID})
	if err := api.SeedLocalSession(ctx, resp.Raw); err != nil {
		log.Warn("seeding browser session failed", zap.Error(err))
	}
	if err := e.navigateWithRetries(ctx, driver, e.cfg.SiteURL+"/social-quest", log); err != nil {
		log.Warn("post-login navigation failed", zap.Error(err))
	}
	log.Info("API login successful")
	return nil
}

func (e *Engine) adoptSession(api QuestAPI, acct *models.Account, s gameapi.Session) {
	api.SetSession(s)
	acct.BearerToken = s.Token
	acct.UserID = s.UserID
}

// navigateWithRetries is the bounded-retry wrapper every navigation goes
// through; the Nth failure surfaces as a step failure, not a crash.
func (e *Engine) navigateWithRetries(ctx context.Context, driver browser.Driver, url string, log *zap.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = driver.Navigate(ctx, url); lastErr == nil {
			return nil
		}
		log.Warn("navigation failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.cfg.MaxRetries),
			zap.Error(lastErr),
		)
	}
	return lastErr
}

func proxyLabel(proxy string) string {
	if proxy == "" {
		return "direct"
	}
	return proxy
}

func randomPause(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
