package report

import (
	"fmt"
	"strings"

	"github.com/valley-guardians/autofarm/internal/models"
)

// Summary renders the per-account operator report. The password line only
// shows for identities that have never completed a run, so fresh credentials
// are visible once without leaking into every later report.
func Summary(acct models.Account, success bool) string {
	var b strings.Builder

	b.WriteString("    ╔═════════════════════════════════════════════════════\n")
	fmt.Fprintf(&b, "    │ Email:    %s\n", orNA(acct.Email))
	if acct.Password != "" && acct.LastRun.IsZero() {
		fmt.Fprintf(&b, "    │ Password: %s\n", acct.Password)
	}
	fmt.Fprintf(&b, "    │ Wallet:   %s\n", orNA(acct.WalletAddress))
	b.WriteString("    ├─────────────────────────────────────────────────────\n")

	if success && acct.HasSession() {
		b.WriteString("    │ Status:   processed\n")
		fmt.Fprintf(&b, "    │ Quests:   %d claimed\n", len(acct.ClaimedQuests))
		fmt.Fprintf(&b, "    │ Balance:  %d GC\n", acct.FinalBalance)
	} else {
		b.WriteString("    │ Status:   FAILED\n")
		fmt.Fprintf(&b, "    │ State:    %s\n", orNA(acct.State))
	}
	b.WriteString("    ╚═════════════════════════════════════════════════════")
	return b.String()
}

// Print writes the summary to stdout.
func Print(acct models.Account, success bool) {
	fmt.Println(Summary(acct, success))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
