package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valley-guardians/autofarm/internal/browser"
	"github.com/valley-guardians/autofarm/internal/config"
	"github.com/valley-guardians/autofarm/internal/db"
	"github.com/valley-guardians/autofarm/internal/engine"
	"github.com/valley-guardians/autofarm/internal/gameapi"
	"github.com/valley-guardians/autofarm/internal/identity"
	"github.com/valley-guardians/autofarm/internal/mailbox"
	"github.com/valley-guardians/autofarm/internal/models"
	"github.com/valley-guardians/autofarm/internal/report"
	"github.com/valley-guardians/autofarm/internal/runlock"
	"github.com/valley-guardians/autofarm/internal/status"
	"github.com/valley-guardians/autofarm/internal/store"
	"github.com/valley-guardians/autofarm/internal/wallet"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	runID := uuid.NewString()[:8]
	log = log.With(zap.String("run", runID))
	log.Info("valley guardians farmer started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal: finish the current account, persist, exit. Second
	// signal: tear down hard.
	var stopRequested atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("interrupt received, finishing current account before shutdown")
		stopRequested.Store(true)
		<-sigCh
		log.Warn("second interrupt, aborting")
		cancel()
	}()

	st := openStore(ctx, cfg, log)
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error("final persist failed", zap.Error(err))
		}
	}()

	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		lock := runlock.New(rdb, cfg.AccountsFile, runID, log)
		if err := lock.Acquire(ctx); err != nil {
			log.Fatal("run lock", zap.Error(err))
		}
		defer lock.Release(context.Background())
	}

	progress := status.NewProgress()
	if cfg.StatusPort != "" {
		go status.Serve(cfg.StatusPort, progress, log)
	}

	accounts, err := st.Load(ctx)
	if err != nil {
		log.Fatal("failed to load accounts", zap.Error(err))
	}

	proxies, err := identity.LoadLines(cfg.ProxiesFile)
	if err != nil {
		log.Fatal("failed to read proxies", zap.Error(err))
	}
	if len(proxies) == 0 {
		log.Warn("no proxies found, running over the direct connection")
	}
	privateKeys, err := identity.LoadLines(cfg.PrivateKeysFile)
	if err != nil {
		log.Fatal("failed to read private keys", zap.Error(err))
	}

	proxyRing := identity.NewProxyRing(proxies)
	eng := engine.New(cfg, models.DefaultCatalog, driverFactory(cfg, log), mailFactory(cfg, log), apiFactory(cfg, log), log)

	registered := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		registered[a.WalletAddress] = true
	}

	// Pass 1: daily gameplay for accounts already in the store.
	if cfg.RunGameplayForExisting && len(accounts) > 0 {
		log.Info("starting daily pass for existing accounts", zap.Int("count", len(accounts)))
		for i := range accounts {
			if stopRequested.Load() || ctx.Err() != nil {
				break
			}
			acct := accounts[i]
			runOne(ctx, eng, st, progress, &acct, false, log)
			pauseBetweenAccounts(ctx, cfg, log)
		}
	}

	// Pass 2: register identities whose wallet is not in the store yet.
	if cfg.RegisterNewAccounts && ctx.Err() == nil {
		registerNew(ctx, cfg, eng, st, progress, proxyRing, privateKeys, registered, &stopRequested, log)
	}

	log.Info("run finished", zap.Int64("processed", progress.Processed()))
}

func registerNew(
	ctx context.Context,
	cfg *config.Config,
	eng *engine.Engine,
	st store.Store,
	progress *status.Progress,
	proxyRing *identity.ProxyRing,
	privateKeys []string,
	registered map[string]bool,
	stopRequested *atomic.Bool,
	log *zap.Logger,
) {
	var fresh []string
	addrByKey := make(map[string]string)
	for _, pk := range privateKeys {
		addr, err := wallet.AddressFromPrivateKey(pk)
		if err != nil {
			log.Error("skipping invalid private key", zap.Error(err))
			continue
		}
		if registered[addr] {
			continue
		}
		fresh = append(fresh, pk)
		addrByKey[pk] = addr
	}
	if len(fresh) == 0 {
		return
	}
	log.Info("new private keys to register", zap.Int("count", len(fresh)))

	for _, pk := range fresh {
		if stopRequested.Load() || ctx.Err() != nil {
			return
		}

		proxy := proxyRing.Next()
		userAgent := identity.RandomUserAgent()

		mail, err := mailbox.NewClient(cfg.MailboxBaseURL, proxy, userAgent, log)
		if err != nil {
			log.Error("mailbox client", zap.Error(err))
			continue
		}
		mb, err := mail.CreateMailbox(ctx)
		if err != nil {
			// Provisioning failure: skip this identity for this run.
			log.Error("mailbox provisioning failed, skipping identity", zap.Error(err))
			continue
		}

		acct := models.Account{
			Email:         mb.Address,
			Password:      identity.RandomPassword(),
			FullName:      identity.RandomFullName(),
			WalletAddress: addrByKey[pk],
			PrivateKey:    pk,
			Proxy:         proxy,
			UserAgent:     userAgent,
			State:         models.StateUnregistered,
			Mailbox:       mb,
		}
		log.Info("registering new identity",
			zap.String("email", acct.Email),
			zap.String("wallet", acct.WalletAddress),
		)

		runOne(ctx, eng, st, progress, &acct, true, log)
		registered[acct.WalletAddress] = true
		pauseBetweenAccounts(ctx, cfg, log)
	}
}

// runOne processes a single account and persists the outcome. Failed passes
// are written too: the store always reflects the most recently attempted
// state, and fresh credentials are never silently lost.
func runOne(ctx context.Context, eng *engine.Engine, st store.Store, progress *status.Progress, acct *models.Account, isNew bool, log *zap.Logger) {
	progress.SetCurrent(acct.WalletAddress)

	ok := eng.ProcessAccount(ctx, acct)
	progress.Record(ok, isNew && ok)

	if err := st.Upsert(ctx, *acct); err != nil {
		log.Error("upsert failed", zap.String("wallet", acct.WalletAddress), zap.Error(err))
	}
	report.Print(*acct, ok)

	if err := st.Flush(ctx); err != nil {
		// Keep going; the state is still in memory and the next persist
		// point retries.
		log.Error("could not save progress, will retry at next persist point", zap.Error(err))
	}
}

func pauseBetweenAccounts(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	d := cfg.DelayBetweenAccsMin
	if cfg.DelayBetweenAccsMax > cfg.DelayBetweenAccsMin {
		d += time.Duration(rand.Int63n(int64(cfg.DelayBetweenAccsMax - cfg.DelayBetweenAccsMin)))
	}
	log.Info("pausing before next account", zap.Duration("delay", d))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) store.Store {
	if cfg.PostgresDSN != "" {
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		st, err := store.NewPostgresStore(ctx, pool, log)
		if err != nil {
			log.Fatal("failed to prepare postgres store", zap.Error(err))
		}
		return st
	}
	return store.NewCSVStore(cfg.AccountsFile, log)
}

func driverFactory(cfg *config.Config, log *zap.Logger) engine.DriverFactory {
	return func(ctx context.Context, acct *models.Account) (browser.Driver, error) {
		return browser.NewChrome(ctx, browser.Options{
			Proxy:      acct.Proxy,
			UserAgent:  acct.UserAgent,
			Headless:   cfg.Headless,
			NavTimeout: cfg.NavTimeout,
		}, log)
	}
}

func mailFactory(cfg *config.Config, log *zap.Logger) engine.MailFactory {
	return func(proxy, userAgent string) (engine.MailProvider, error) {
		return mailbox.NewClient(cfg.MailboxBaseURL, proxy, userAgent, log)
	}
}

func apiFactory(cfg *config.Config, log *zap.Logger) engine.APIFactory {
	return func(d browser.Driver) engine.QuestAPI {
		return gameapi.NewClient(d, cfg, log)
	}
}
