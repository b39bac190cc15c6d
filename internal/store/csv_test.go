package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/valley-guardians/autofarm/internal/mailbox"
	"github.com/valley-guardians/autofarm/internal/models"
)

func tempStore(t *testing.T) *CSVStore {
	t.Helper()
	return NewCSVStore(filepath.Join(t.TempDir(), "accounts.csv"), zap.NewNop())
}

func TestCSVLoadMissingFile(t *testing.T) {
	accounts, err := tempStore(t).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("accounts = %v, want empty", accounts)
	}
}

func TestCSVUpsertDedupsByWallet(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	first := models.Account{Email: "a@x", WalletAddress: "0xAAA", FinalBalance: 100}
	second := models.Account{Email: "a@x", WalletAddress: "0xAAA", FinalBalance: 600, State: models.StateDone}
	other := models.Account{Email: "b@x", WalletAddress: "0xBBB"}

	for _, a := range []models.Account{first, other, second} {
		if err := s.Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	accounts, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("rows = %d, want 2", len(accounts))
	}
	if accounts[0].WalletAddress != "0xAAA" || accounts[0].FinalBalance != 600 || accounts[0].State != models.StateDone {
		t.Errorf("row 0 = %+v, want the updated 0xAAA record", accounts[0])
	}
}

func TestCSVUpsertRejectsMissingWallet(t *testing.T) {
	if err := tempStore(t).Upsert(context.Background(), models.Account{Email: "a@x"}); err == nil {
		t.Fatal("expected error for account without wallet address")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	acct := models.Account{
		Email:         "farm1@tmpmail.org",
		Password:      "s3cretpass12",
		FullName:      "Jordan Reed1992",
		WalletAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		PrivateKey:    "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		Proxy:         "http://user:pw@proxy:8080",
		UserAgent:     "Mozilla/5.0",
		BearerToken:   "ey.tok.en",
		UserID:        "user-7",
		State:         models.StateDone,
		ClaimedQuests: models.QuestLog{"social_tweet_4", "weekly_twitter"},
		LastRun:       time.Date(2026, 9, 1, 14, 30, 5, 0, time.UTC),
		FinalBalance:  1900,
		Mailbox:       &mailbox.Mailbox{Address: "farm1@tmpmail.org", Token: "mb-tok"},
	}
	if err := s.Upsert(ctx, acct); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fresh := NewCSVStore(s.path, zap.NewNop())
	accounts, err := fresh.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("rows = %d, want 1", len(accounts))
	}

	got := accounts[0]
	if got.Mailbox != nil {
		t.Error("mailbox handle must never be persisted")
	}
	if got.Email != acct.Email || got.Password != acct.Password ||
		got.WalletAddress != acct.WalletAddress || got.BearerToken != acct.BearerToken ||
		got.UserID != acct.UserID || got.State != acct.State ||
		got.FinalBalance != acct.FinalBalance {
		t.Errorf("round-tripped account = %+v, want %+v", got, acct)
	}
	if !got.LastRun.Equal(acct.LastRun) {
		t.Errorf("LastRun = %v, want %v", got.LastRun, acct.LastRun)
	}
	if got.ClaimedQuests.Encode() != acct.ClaimedQuests.Encode() {
		t.Errorf("quest log = %v, want %v", got.ClaimedQuests, acct.ClaimedQuests)
	}
}

func TestCSVLoadSkipsRowsWithoutWallet(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, models.Account{Email: "keep@x", WalletAddress: "0xKEEP"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	// Append a malformed row by hand.
	raw := NewCSVStore(s.path, zap.NewNop())
	if _, err := raw.Load(ctx); err != nil {
		t.Fatal(err)
	}
	raw.rows = append(raw.rows, models.Account{Email: "broken@x"})
	if err := raw.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	accounts, err := NewCSVStore(s.path, zap.NewNop()).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(accounts) != 1 || accounts[0].WalletAddress != "0xKEEP" {
		t.Errorf("accounts = %+v, want only the 0xKEEP row", accounts)
	}
}
