package models

import (
	"testing"
	"time"

	"github.com/valley-guardians/autofarm/internal/mailbox"
)

func TestIsValidLifecycleTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// New-account happy path
		{StateUnregistered, StateRegistering, true},
		{StateRegistering, StateAwaitingVerification, true},
		{StateAwaitingVerification, StateCompletingRegistration, true},
		{StateCompletingRegistration, StateAuthenticated, true},
		{StateAuthenticated, StateRunningGameplay, true},
		{StateRunningGameplay, StateDone, true},

		// Existing-account happy path
		{StateUnregistered, StateAuthenticating, true},
		{StateAuthenticating, StateAuthenticated, true},

		// Failure edges
		{StateUnregistered, StateFailed, true},
		{StateRegistering, StateFailed, true},
		{StateAwaitingVerification, StateFailed, true},
		{StateCompletingRegistration, StateFailed, true},
		{StateAuthenticating, StateFailed, true},
		{StateAuthenticated, StateFailed, true},
		{StateRunningGameplay, StateFailed, true},

		// Invalid transitions
		{StateUnregistered, StateDone, false},
		{StateRegistering, StateAuthenticated, false},
		{StateAwaitingVerification, StateAuthenticated, false},
		{StateAuthenticated, StateDone, false},
		{StateDone, StateRunningGameplay, false},
		{StateFailed, StateRegistering, false},
		{StateDone, StateFailed, false},
		{"nonexistent", StateFailed, false},
		{StateUnregistered, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidLifecycleTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidLifecycleTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	for _, state := range []string{StateDone, StateFailed} {
		if transitions := ValidLifecycleTransitions[state]; len(transitions) != 0 {
			t.Errorf("terminal state %q should have no transitions, got %v", state, transitions)
		}
	}
}

func TestAllStatesHaveTransitionEntry(t *testing.T) {
	allStates := []string{
		StateUnregistered, StateRegistering, StateAwaitingVerification,
		StateCompletingRegistration, StateAuthenticating, StateAuthenticated,
		StateRunningGameplay, StateDone, StateFailed,
	}
	for _, state := range allStates {
		if _, ok := ValidLifecycleTransitions[state]; !ok {
			t.Errorf("state %q missing from ValidLifecycleTransitions map", state)
		}
	}
}

func TestTransitionEnforcesMap(t *testing.T) {
	a := &Account{}
	if err := a.Transition(StateRegistering); err != nil {
		t.Fatalf("empty state should act as unregistered: %v", err)
	}
	if a.State != StateRegistering {
		t.Fatalf("State = %q, want %q", a.State, StateRegistering)
	}
	if err := a.Transition(StateDone); err == nil {
		t.Fatal("expected error for registering -> done")
	}
	if a.State != StateRegistering {
		t.Fatalf("failed transition must not move state, got %q", a.State)
	}
}

func TestResetDailyQuests(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		lastRun time.Time
		log     QuestLog
		want    QuestLog
		pruned  bool
	}{
		{
			name:    "yesterday prunes daily only",
			lastRun: now.AddDate(0, 0, -1),
			log:     QuestLog{"daily_checkin", "weekly_twitter"},
			want:    QuestLog{"weekly_twitter"},
			pruned:  true,
		},
		{
			name:    "same day keeps everything",
			lastRun: now.Add(-2 * time.Hour),
			log:     QuestLog{"daily_checkin", "weekly_twitter"},
			want:    QuestLog{"daily_checkin", "weekly_twitter"},
			pruned:  false,
		},
		{
			name:    "never run keeps everything",
			lastRun: time.Time{},
			log:     QuestLog{"daily_checkin"},
			want:    QuestLog{"daily_checkin"},
			pruned:  false,
		},
		{
			name:    "last week prunes all daily entries",
			lastRun: now.AddDate(0, 0, -7),
			log:     QuestLog{"daily_checkin", "daily_spin", "social_tweet_4"},
			want:    QuestLog{"social_tweet_4"},
			pruned:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{LastRun: tt.lastRun, ClaimedQuests: append(QuestLog(nil), tt.log...)}
			pruned := a.ResetDailyQuests(now)
			if pruned != tt.pruned {
				t.Errorf("pruned = %v, want %v", pruned, tt.pruned)
			}
			if len(a.ClaimedQuests) != len(tt.want) {
				t.Fatalf("log = %v, want %v", a.ClaimedQuests, tt.want)
			}
			for i, q := range tt.want {
				if a.ClaimedQuests[i] != q {
					t.Errorf("log[%d] = %q, want %q", i, a.ClaimedQuests[i], q)
				}
			}
		})
	}
}

func TestQuestLogAddIsIdempotent(t *testing.T) {
	var l QuestLog
	l = l.Add("social_tweet_4")
	l = l.Add("social_tweet_4")
	l = l.Add("weekly_twitter")
	if len(l) != 2 {
		t.Fatalf("len = %d, want 2", len(l))
	}
	if !l.Contains("social_tweet_4") || !l.Contains("weekly_twitter") {
		t.Fatalf("log missing entries: %v", l)
	}
}

func TestQuestLogCodec(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty string", "", 0},
		{"empty array", "[]", 0},
		{"two entries", `["social_tweet_4","weekly_twitter"]`, 2},
		{"garbage", "not json", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ParseQuestLog(tt.input)
			if len(l) != tt.want {
				t.Errorf("ParseQuestLog(%q) has %d entries, want %d", tt.input, len(l), tt.want)
			}
		})
	}

	l := QuestLog{"social_tweet_4", "weekly_twitter"}
	back := ParseQuestLog(l.Encode())
	if len(back) != 2 || back[0] != "social_tweet_4" || back[1] != "weekly_twitter" {
		t.Fatalf("roundtrip produced %v", back)
	}
	if (QuestLog{}).Encode() != "[]" {
		t.Fatalf("empty log must encode as []")
	}
}

func TestSanitizedStripsMailbox(t *testing.T) {
	a := Account{
		WalletAddress: "0xabc",
		Mailbox:       &mailbox.Mailbox{Address: "x@tmp.org", Token: "secret"},
	}
	clean := a.Sanitized()
	if clean.Mailbox != nil {
		t.Fatal("Sanitized must clear the mailbox handle")
	}
	if a.Mailbox == nil {
		t.Fatal("Sanitized must not mutate the original")
	}
	if clean.WalletAddress != "0xabc" {
		t.Fatal("Sanitized must keep the other fields")
	}
}

func TestDefaultCatalog(t *testing.T) {
	if len(DefaultCatalog) != 6 {
		t.Fatalf("catalog has %d quests, want 6", len(DefaultCatalog))
	}
	if DefaultCatalog[0].ID != "social_tweet_4" || DefaultCatalog[0].Reward != 500 {
		t.Errorf("unexpected first catalog entry: %+v", DefaultCatalog[0])
	}
	if !CatalogHas(DefaultCatalog, "weekly_telegram_1") {
		t.Error("catalog missing weekly_telegram_1")
	}
	if CatalogHas(DefaultCatalog, "social_tweet_99") {
		t.Error("catalog should not contain social_tweet_99")
	}
	for _, q := range DefaultCatalog {
		if IsDailyQuest(q.ID) {
			t.Errorf("catalog quest %q must not be daily-scoped", q.ID)
		}
	}
}
