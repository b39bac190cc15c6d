package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Target application
	BaseURL      string // Supabase-style API origin, e.g. https://abcdefgh.supabase.co
	APIKey       string // anon apikey sent with every API call
	SiteURL      string // game front-end origin
	ReferralCode string

	// Mailbox provider
	MailboxBaseURL string
	VerifyTimeout  time.Duration // how long to wait for the verification email
	MailPollEvery  time.Duration

	// Browser
	Headless   bool
	NavTimeout time.Duration

	// Pacing / retries
	MaxRetries          int
	MinDelay            time.Duration // between in-page requests
	MaxDelay            time.Duration
	DelayBetweenAccsMin time.Duration
	DelayBetweenAccsMax time.Duration

	// Passes
	RunGameplayForExisting bool
	RegisterNewAccounts    bool

	// Inputs / persistence
	AccountsFile    string
	ProxiesFile     string
	PrivateKeysFile string
	PostgresDSN     string // optional: when set, accounts live in postgres instead of the CSV file
	RedisURL        string // optional: when set, a run lock is taken before the batch starts

	// Operator status endpoint (optional)
	StatusPort string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		BaseURL:      getEnv("BASE_URL", ""),
		APIKey:       getEnv("API_KEY", ""),
		SiteURL:      getEnv("SITE_URL", "https://valleyofguardians.xyz"),
		ReferralCode: getEnv("REFERRAL_CODE", ""),

		MailboxBaseURL: getEnv("MAILBOX_BASE_URL", "https://web2.temp-mail.org"),
		VerifyTimeout:  getEnvDuration("VERIFY_TIMEOUT_SECONDS", 120*time.Second),
		MailPollEvery:  getEnvDuration("MAIL_POLL_SECONDS", 10*time.Second),

		Headless:   getEnvBool("HEADLESS", true),
		NavTimeout: getEnvDuration("NAV_TIMEOUT_SECONDS", 90*time.Second),

		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		MinDelay:            getEnvDuration("MIN_DELAY_SECONDS", 2*time.Second),
		MaxDelay:            getEnvDuration("MAX_DELAY_SECONDS", 6*time.Second),
		DelayBetweenAccsMin: getEnvDuration("DELAY_BETWEEN_ACCOUNTS_MIN_SECONDS", 60*time.Second),
		DelayBetweenAccsMax: getEnvDuration("DELAY_BETWEEN_ACCOUNTS_MAX_SECONDS", 300*time.Second),

		RunGameplayForExisting: getEnvBool("RUN_GAMEPLAY_FOR_EXISTING", true),
		RegisterNewAccounts:    getEnvBool("REGISTER_NEW_ACCOUNTS", true),

		AccountsFile:    getEnv("ACCOUNTS_FILE", "accounts.csv"),
		ProxiesFile:     getEnv("PROXIES_FILE", "proxies.txt"),
		PrivateKeysFile: getEnv("PRIVATE_KEYS_FILE", "private_keys.txt"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		RedisURL:        getEnv("REDIS_URL", ""),

		StatusPort: getEnv("STATUS_PORT", ""),
	}
}

// ProjectRef is the first DNS label of BaseURL (https://abcdefgh.supabase.co ->
// "abcdefgh"). The front-end keeps the session under
// localStorage["sb-<ref>-auth-token"].
func (c *Config) ProjectRef() string {
	host := strings.TrimPrefix(strings.TrimPrefix(c.BaseURL, "https://"), "http://")
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func (c *Config) Validate(log *zap.Logger) {
	if c.BaseURL == "" {
		log.Warn("BASE_URL is not set, API calls will fail")
	}
	if c.APIKey == "" {
		log.Warn("API_KEY is not set, API calls will be rejected")
	}
	if c.ReferralCode == "" && c.RegisterNewAccounts {
		log.Warn("REFERRAL_CODE is not set, registrations will go in without a referral")
	}
	if c.MinDelay > c.MaxDelay {
		log.Warn("MIN_DELAY_SECONDS is greater than MAX_DELAY_SECONDS, using the minimum only")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return time.Duration(v) * time.Second
}
