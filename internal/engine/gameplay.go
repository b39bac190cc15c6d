package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/valley-guardians/autofarm/internal/models"
)

// runGameplay claims every catalog quest not yet in the account's log, at
// most once each. Quests already logged are skipped without touching the
// network; quests that fail to confirm are left for the next run. The log is
// appended immediately after each confirmation, so an interrupted pass never
// re-claims what it already got.
func (e *Engine) runGameplay(ctx context.Context, api QuestAPI, acct *models.Account, log *zap.Logger) error {
	e.pause(ctx, 10*time.Second, 15*time.Second)
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Info("claiming available quests", zap.Int("already_claimed", len(acct.ClaimedQuests)))
	api.BackgroundActivity(ctx)

	// The server's balance is authoritative; a failed probe keeps the
	// pre-pass value rather than inventing a zero.
	balance := acct.FinalBalance
	if b, ok := api.FetchBalance(ctx); ok {
		balance = b
	}

	for _, quest := range e.catalog {
		if acct.ClaimedQuests.Contains(quest.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Info("claiming quest", zap.String("quest", quest.ID), zap.Int("reward", quest.Reward))
		res, err := api.ClaimQuest(ctx, quest.ID, quest.Reward)
		if err != nil || res == nil || !res.Claimed {
			// Not confirmed: stays out of the log, eligible next run.
			log.Warn("quest not confirmed", zap.String("quest", quest.ID), zap.Error(err))
			continue
		}

		acct.ClaimedQuests = acct.ClaimedQuests.Add(quest.ID)
		balance = res.NewBalance
		log.Info("quest claimed", zap.String("quest", quest.ID), zap.Int("balance", balance))
		api.BackgroundActivity(ctx)
	}

	acct.FinalBalance = balance
	acct.LastRun = e.now()
	return nil
}
