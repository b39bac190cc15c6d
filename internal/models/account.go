package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valley-guardians/autofarm/internal/mailbox"
)

// Lifecycle states
const (
	StateUnregistered          = "unregistered"
	StateRegistering           = "registering"
	StateAwaitingVerification  = "awaiting_verification"
	StateCompletingRegistration = "completing_registration"
	StateAuthenticating        = "authenticating"
	StateAuthenticated         = "authenticated"
	StateRunningGameplay       = "running_gameplay"
	StateDone                  = "done"
	StateFailed                = "failed"
)

// Valid lifecycle transitions: from -> []to
var ValidLifecycleTransitions = map[string][]string{
	StateUnregistered:           {StateRegistering, StateAuthenticating, StateFailed},
	StateRegistering:            {StateAwaitingVerification, StateFailed},
	StateAwaitingVerification:   {StateCompletingRegistration, StateFailed},
	StateCompletingRegistration: {StateAuthenticated, StateFailed},
	StateAuthenticating:         {StateAuthenticated, StateFailed},
	StateAuthenticated:          {StateRunningGameplay, StateFailed},
	StateRunningGameplay:        {StateDone, StateFailed},
	StateDone:                   {},
	StateFailed:                 {},
}

func IsValidLifecycleTransition(from, to string) bool {
	allowed, ok := ValidLifecycleTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// LastRunLayout is the timestamp format used in the store.
const LastRunLayout = "2006-01-02 15:04:05"

// Account is the persisted state of one game identity. WalletAddress is the
// dedup key: the store must never hold two rows for the same address.
type Account struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	WalletAddress string `json:"wallet_address"`
	PrivateKey    string `json:"private_key"`

	// Fixed for the account's lifetime once assigned.
	Proxy     string `json:"proxy"`
	UserAgent string `json:"user_agent"`

	// Empty until the account has authenticated at least once.
	BearerToken string `json:"bearer_token"`
	UserID      string `json:"user_id"`

	State         string    `json:"state"`
	ClaimedQuests QuestLog  `json:"claimed_quests_log"`
	LastRun       time.Time `json:"last_run"`
	FinalBalance  int       `json:"final_balance"`

	// Provisioning handle for a freshly created identity. Never persisted.
	Mailbox *mailbox.Mailbox `json:"-"`
}

// HasSession reports whether the record already carries a bearer token, i.e.
// the account exists on the site and a lightweight re-login should be tried
// before any full registration.
func (a *Account) HasSession() bool {
	return a.BearerToken != ""
}

// Transition moves the account to the given lifecycle state, enforcing the
// transition map.
func (a *Account) Transition(to string) error {
	from := a.State
	if from == "" {
		from = StateUnregistered
	}
	if !IsValidLifecycleTransition(from, to) {
		return fmt.Errorf("illegal lifecycle transition %s -> %s", from, to)
	}
	a.State = to
	return nil
}

// Sanitized returns a copy safe to hand to the store: the mailbox handle is
// ephemeral and must never be written out.
func (a Account) Sanitized() Account {
	a.Mailbox = nil
	return a
}

// ResetDailyQuests prunes daily-scoped entries from the claimed log when the
// last successful run happened on an earlier calendar day, making those quests
// eligible again. Non-daily entries are never pruned. Returns whether anything
// was removed.
func (a *Account) ResetDailyQuests(now time.Time) bool {
	if a.LastRun.IsZero() {
		return false
	}
	ly, lm, ld := a.LastRun.Date()
	ny, nm, nd := now.Date()
	lastDay := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	if !lastDay.Before(today) {
		return false
	}

	kept := a.ClaimedQuests[:0:0]
	pruned := false
	for _, q := range a.ClaimedQuests {
		if IsDailyQuest(q) {
			pruned = true
			continue
		}
		kept = append(kept, q)
	}
	a.ClaimedQuests = kept
	return pruned
}

// IsDailyQuest reports whether a quest identifier is daily-scoped.
func IsDailyQuest(id string) bool {
	return strings.Contains(id, "daily")
}

// QuestLog is the ordered set of quest identifiers already rewarded.
type QuestLog []string

func (l QuestLog) Contains(id string) bool {
	for _, q := range l {
		if q == id {
			return true
		}
	}
	return false
}

// Add appends id if absent and returns the (possibly grown) log.
func (l QuestLog) Add(id string) QuestLog {
	if l.Contains(id) {
		return l
	}
	return append(l, id)
}

// Encode serializes the log for a store column.
func (l QuestLog) Encode() string {
	if len(l) == 0 {
		return "[]"
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ParseQuestLog decodes a store column value. Malformed input yields an empty
// log rather than an error: a corrupt cell must not take the whole row down.
func ParseQuestLog(s string) QuestLog {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return QuestLog(out)
}
