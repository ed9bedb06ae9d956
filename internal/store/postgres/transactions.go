package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noahpengding/peng-finance/internal/domain"
)

const transactionColumns = `id, username, account, date, post_date, category,
	original_category, merchant_name, description, currency, amount`

// InsertTransactions bulk-inserts candidates inside one transaction. IDs are
// assigned by the database.
func (s *Storage) InsertTransactions(ctx context.Context, txs []*domain.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertTransactions: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, t := range txs {
		err := tx.QueryRow(ctx, `
			INSERT INTO transactions
				(username, account, date, post_date, category,
				 original_category, merchant_name, description, currency, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, t.Username, t.Account, t.Date, t.PostDate, t.Category,
			t.OriginalCategory, t.MerchantName, t.Description, t.Currency, t.Amount,
		).Scan(&t.ID)
		if err != nil {
			// The rollback discards every row already written.
			return 0, fmt.Errorf("InsertTransactions: inserting row: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("InsertTransactions: commit: %w", err)
	}
	return inserted, nil
}

// ListForUser returns the user's transactions in insertion order.
func (s *Storage) ListForUser(ctx context.Context, username string) ([]*domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE username = $1
		ORDER BY id
	`, username)
	if err != nil {
		return nil, fmt.Errorf("ListForUser: query: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListUncategorized returns the user's transactions with an empty category.
func (s *Storage) ListUncategorized(ctx context.Context, username string) ([]*domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE username = $1 AND category = ''
		ORDER BY id
	`, username)
	if err != nil {
		return nil, fmt.Errorf("ListUncategorized: query: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// DeleteByIDs removes the given transaction rows.
func (s *Storage) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cmd, err := s.db.Exec(ctx, `DELETE FROM transactions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("DeleteByIDs: exec: %w", err)
	}
	return cmd.RowsAffected(), nil
}

// ListAll returns every transaction, for snapshot export.
func (s *Storage) ListAll(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListAll: query: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(&t.ID, &t.Username, &t.Account, &t.Date, &t.PostDate,
			&t.Category, &t.OriginalCategory, &t.MerchantName, &t.Description,
			&t.Currency, &t.Amount)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}
