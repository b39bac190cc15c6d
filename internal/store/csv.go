package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valley-guardians/autofarm/internal/models"
	"go.uber.org/zap"
)

var csvHeader = []string{
	"email", "password", "full_name", "wallet_address", "private_key",
	"proxy", "user_agent", "bearer_token", "user_id", "state",
	"claimed_quests_log", "last_run", "final_balance",
}

// CSVStore keeps the account table in one CSV file, one row per account.
// Rows live in memory between flushes; the file is rewritten whole, through a
// temp file, so a crash mid-write never truncates the table.
type CSVStore struct {
	path  string
	log   *zap.Logger
	rows  []models.Account
	index map[string]int // wallet address -> rows position
}

func NewCSVStore(path string, log *zap.Logger) *CSVStore {
	return &CSVStore{
		path:  path,
		log:   log,
		index: make(map[string]int),
	}
}

func (s *CSVStore) Load(ctx context.Context) ([]models.Account, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("accounts file not found, starting empty", zap.String("path", s.path))
			return nil, nil
		}
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	s.rows = s.rows[:0]
	s.index = make(map[string]int)
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == "email" {
			continue
		}
		acct := decodeRow(rec)
		if acct.WalletAddress == "" {
			s.log.Warn("skipping row without wallet address", zap.Int("row", i+1))
			continue
		}
		s.index[acct.WalletAddress] = len(s.rows)
		s.rows = append(s.rows, acct)
	}

	s.log.Info("accounts loaded", zap.Int("count", len(s.rows)), zap.String("path", s.path))
	out := make([]models.Account, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

// Upsert replaces the row with the same wallet address or appends a new one.
func (s *CSVStore) Upsert(ctx context.Context, acct models.Account) error {
	acct = acct.Sanitized()
	if acct.WalletAddress == "" {
		return fmt.Errorf("account has no wallet address")
	}
	if pos, ok := s.index[acct.WalletAddress]; ok {
		s.rows[pos] = acct
		return nil
	}
	s.index[acct.WalletAddress] = len(s.rows)
	s.rows = append(s.rows, acct)
	return nil
}

func (s *CSVStore) Flush(ctx context.Context) error {
	tmp := filepath.Join(filepath.Dir(s.path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(s.path), uuid.NewString()[:8]))
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp accounts file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	for _, acct := range s.rows {
		if err := writer.Write(encodeRow(acct)); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace accounts file: %w", err)
	}
	s.log.Info("progress saved", zap.Int("accounts", len(s.rows)))
	return nil
}

func (s *CSVStore) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func encodeRow(a models.Account) []string {
	lastRun := ""
	if !a.LastRun.IsZero() {
		lastRun = a.LastRun.Format(models.LastRunLayout)
	}
	return []string{
		a.Email, a.Password, a.FullName, a.WalletAddress, a.PrivateKey,
		a.Proxy, a.UserAgent, a.BearerToken, a.UserID, a.State,
		a.ClaimedQuests.Encode(), lastRun, strconv.Itoa(a.FinalBalance),
	}
}

func decodeRow(rec []string) models.Account {
	get := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var lastRun time.Time
	if v := get(11); v != "" {
		if t, err := time.Parse(models.LastRunLayout, v); err == nil {
			lastRun = t
		}
	}
	balance, _ := strconv.Atoi(get(12))

	return models.Account{
		Email:         get(0),
		Password:      get(1),
		FullName:      get(2),
		WalletAddress: get(3),
		PrivateKey:    get(4),
		Proxy:         get(5),
		UserAgent:     get(6),
		BearerToken:   get(7),
		UserID:        get(8),
		State:         get(9),
		ClaimedQuests: models.ParseQuestLog(get(10)),
		LastRun:       lastRun,
		FinalBalance:  balance,
	}
}
