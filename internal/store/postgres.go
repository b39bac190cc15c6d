package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valley-guardians/autofarm/internal/models"
	"go.uber.org/zap"
)

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	wallet_address     TEXT PRIMARY KEY,
	email              TEXT NOT NULL DEFAULT '',
	password           TEXT NOT NULL DEFAULT '',
	full_name          TEXT NOT NULL DEFAULT '',
	private_key        TEXT NOT NULL DEFAULT '',
	proxy              TEXT NOT NULL DEFAULT '',
	user_agent         TEXT NOT NULL DEFAULT '',
	bearer_token       TEXT NOT NULL DEFAULT '',
	user_id            TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT '',
	claimed_quests_log TEXT NOT NULL DEFAULT '[]',
	last_run           TIMESTAMPTZ,
	final_balance      BIGINT NOT NULL DEFAULT 0,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore is the optional database-backed account table for operators
// who run the batch from more than one machine. Writes land immediately;
// Flush is a no-op.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, accountsSchema); err != nil {
		return nil, fmt.Errorf("ensure accounts table: %w", err)
	}
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT email, password, full_name, wallet_address, private_key,
		       proxy, user_agent, bearer_token, user_id, state,
		       claimed_quests_log, last_run, final_balance
		FROM accounts ORDER BY updated_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var questLog string
		var lastRun *time.Time
		if err := rows.Scan(
			&a.Email, &a.Password, &a.FullName, &a.WalletAddress, &a.PrivateKey,
			&a.Proxy, &a.UserAgent, &a.BearerToken, &a.UserID, &a.State,
			&questLog, &lastRun, &a.FinalBalance,
		); err != nil {
			return nil, err
		}
		a.ClaimedQuests = models.ParseQuestLog(questLog)
		if lastRun != nil {
			a.LastRun = *lastRun
		}
		accounts = append(accounts, a)
	}
	s.log.Info("accounts loaded", zap.Int("count", len(accounts)))
	return accounts, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, acct models.Account) error {
	acct = acct.Sanitized()
	if acct.WalletAddress == "" {
		return fmt.Errorf("account has no wallet address")
	}

	var lastRun *time.Time
	if !acct.LastRun.IsZero() {
		lastRun = &acct.LastRun
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (
			email, password, full_name, wallet_address, private_key,
			proxy, user_agent, bearer_token, user_id, state,
			claimed_quests_log, last_run, final_balance, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (wallet_address) DO UPDATE SET
			email = EXCLUDED.email,
			password = EXCLUDED.password,
			full_name = EXCLUDED.full_name,
			private_key = EXCLUDED.private_key,
			proxy = EXCLUDED.proxy,
			user_agent = EXCLUDED.user_agent,
			bearer_token = EXCLUDED.bearer_token,
			user_id = EXCLUDED.user_id,
			state = EXCLUDED.state,
			claimed_quests_log = EXCLUDED.claimed_quests_log,
			last_run = EXCLUDED.last_run,
			final_balance = EXCLUDED.final_balance,
			updated_at = now()
	`, acct.Email, acct.Password, acct.FullName, acct.WalletAddress, acct.PrivateKey,
		acct.Proxy, acct.UserAgent, acct.BearerToken, acct.UserID, acct.State,
		acct.ClaimedQuests.Encode(), lastRun, acct.FinalBalance)
	return err
}

func (s *PostgresStore) Flush(ctx context.Context) error { return nil }

func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
