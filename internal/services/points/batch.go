package points

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/money"
	"syntra-settlement/internal/verifone"
)

// BalanceLookup fetches a customer's balance from the loyalty system.
type BalanceLookup interface {
	GetCustomerPoints(ctx context.Context, phone string) (verifone.Balance, error)
}

type BatchOptions struct {
	BatchSize   int
	MaxBatches  int
	Concurrency int
	// StartAfter resumes the walk after this user id.
	StartAfter  int64
}

type UserFailure struct {
	UserID int64  `json:"user_id"`
	Phone  string `json:"phone"`
	Error  string `json:"error"`
}

type BatchSummary struct {
	Batches    int           `json:"batches"`
	Processed  int           `json:"processed"`
	Updated    int           `json:"updated"`
	Unchanged  int           `json:"unchanged"`
	NotMembers int           `json:"not_members"`
	Failed     []UserFailure `json:"failed"`
	LastUserID int64         `json:"last_user_id"`
	Exhausted  bool          `json:"exhausted"`
	Duration   time.Duration `json:"duration"`
}

// BatchSyncAllUsers walks users with a phone number by id and copies their
// loyalty balance into the cache. A failing user is recorded in the summary
// and never stops the walk. MaxBatches <= 0 walks every user. Exhausted
// reports whether the walk reached the last user.
func (l *Ledger) BatchSyncAllUsers(ctx context.Context, lookup BalanceLookup, opts BatchOptions) (BatchSummary, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	start := time.Now()
	summary := BatchSummary{Failed: []UserFailure{}, LastUserID: opts.StartAfter}
	var mu sync.Mutex

	for opts.MaxBatches <= 0 || summary.Batches < opts.MaxBatches {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		var users []models.User
		if err := l.db.WithContext(ctx).
			Select("id", "phone", "points_balance").
			Where("id > ? AND phone <> ''", summary.LastUserID).
			Order("id ASC").
			Limit(opts.BatchSize).
			Find(&users).Error; err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("failed to load users after %d: %w", summary.LastUserID, err)
		}
		if len(users) == 0 {
			summary.Exhausted = true
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, user := range users {
			user := user
			g.Go(func() error {
				outcome, err := l.syncUser(gctx, lookup, user)

				mu.Lock()
				defer mu.Unlock()
				summary.Processed++
				if err != nil {
					summary.Failed = append(summary.Failed, UserFailure{UserID: user.ID, Phone: user.Phone, Error: err.Error()})
					return nil
				}
				switch outcome {
				case outcomeUpdated:
					summary.Updated++
				case outcomeUnchanged:
					summary.Unchanged++
				case outcomeNotMember:
					summary.NotMembers++
				}
				return nil
			})
		}
		_ = g.Wait()

		summary.Batches++
		summary.LastUserID = users[len(users)-1].ID
		if len(users) < opts.BatchSize {
			summary.Exhausted = true
			break
		}
	}

	summary.Duration = time.Since(start)
	l.logger.Info("Points batch sync finished",
		zap.Int("batches", summary.Batches),
		zap.Int("processed", summary.Processed),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("not_members", summary.NotMembers),
		zap.Int("failed", len(summary.Failed)),
		zap.Int64("last_user_id", summary.LastUserID),
		zap.Bool("exhausted", summary.Exhausted),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

type syncOutcome int

const (
	outcomeUnchanged syncOutcome = iota
	outcomeUpdated
	outcomeNotMember
)

func (l *Ledger) syncUser(ctx context.Context, lookup BalanceLookup, user models.User) (syncOutcome, error) {
	balance, err := lookup.GetCustomerPoints(ctx, user.Phone)
	if err != nil {
		return outcomeUnchanged, err
	}
	if !balance.IsMember {
		return outcomeNotMember, nil
	}

	external := money.Round2(balance.CreditPoints)
	if external.Equal(user.PointsBalance) {
		return outcomeUnchanged, nil
	}

	if err := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		UpdateColumn("points_balance", external).Error; err != nil {
		return outcomeUnchanged, fmt.Errorf("failed to update balance: %w", err)
	}
	return outcomeUpdated, nil
}
