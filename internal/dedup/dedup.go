// Package dedup removes duplicate transaction rows per user. Two rows are
// duplicates when every field except the database id matches.
package dedup

import (
	"context"
	"fmt"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/store"
)

// Service deduplicates a user's transactions.
type Service struct {
	transactions store.TransactionStore
	publisher    jobs.Publisher
}

// NewService creates a dedup service. publisher may be nil when no
// durability mirror is configured.
func NewService(transactions store.TransactionStore, publisher jobs.Publisher) *Service {
	return &Service{transactions: transactions, publisher: publisher}
}

// Deduplicate scans the user's transactions in insertion order, keeps the
// first occurrence of each equality key, and deletes the rest in one batch.
// Running it again immediately removes nothing.
func (s *Service) Deduplicate(ctx context.Context, username string) (int, error) {
	log := logger.FromContext(ctx)

	txs, err := s.transactions.ListForUser(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("Deduplicate: listing transactions: %w", err)
	}

	seen := make(map[domain.EqualityKey]bool, len(txs))
	var dupIDs []int64
	for _, t := range txs {
		key := t.Key()
		if seen[key] {
			dupIDs = append(dupIDs, t.ID)
			continue
		}
		seen[key] = true
	}

	if len(dupIDs) == 0 {
		log.Debug().Str("username", username).Msg("No duplicate transactions")
		return 0, nil
	}

	removed, err := s.transactions.DeleteByIDs(ctx, dupIDs)
	if err != nil {
		return 0, fmt.Errorf("Deduplicate: deleting duplicates: %w", err)
	}

	log.Info().
		Str("username", username).
		Int64("removed", removed).
		Msg("Removed duplicate transactions")

	if s.publisher != nil {
		err := s.publisher.PublishSync(ctx, &jobs.SyncJob{Reason: "deduplicate", Username: username})
		if err != nil {
			log.Warn().Err(err).Msg("Could not enqueue snapshot sync")
		}
	}
	return int(removed), nil
}
