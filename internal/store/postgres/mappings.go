package postgres

import (
	"context"
	"fmt"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/store"
)

// GetMappings returns the account's canonical-field → source map. An unknown
// account yields an empty map.
func (s *Storage) GetMappings(ctx context.Context, account string) (map[domain.CanonicalField]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT target, source
		FROM field_mappings
		WHERE account = $1
	`, account)
	if err != nil {
		return nil, fmt.Errorf("GetMappings: query: %w", err)
	}
	defer rows.Close()

	mappings := make(map[domain.CanonicalField]string)
	for rows.Next() {
		var target, source string
		if err := rows.Scan(&target, &source); err != nil {
			return nil, fmt.Errorf("GetMappings: scanning row: %w", err)
		}
		mappings[domain.CanonicalField(target)] = source
	}
	return mappings, rows.Err()
}

// ReplaceMappings wipes the account's mappings and writes the new set inside
// one transaction, so a failed insert cannot leave the account with nothing.
func (s *Storage) ReplaceMappings(ctx context.Context, account string, mappings map[domain.CanonicalField]string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceMappings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM field_mappings WHERE account = $1`, account); err != nil {
		return fmt.Errorf("ReplaceMappings: deleting old mappings: %w", err)
	}

	for target, source := range mappings {
		_, err := tx.Exec(ctx, `
			INSERT INTO field_mappings (account, source, target)
			VALUES ($1, $2, $3)
		`, account, source, string(target))
		if err != nil {
			return fmt.Errorf("ReplaceMappings: inserting mapping %q: %w", target, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ReplaceMappings: commit: %w", err)
	}
	return nil
}

// ListAccounts returns the distinct accounts that have saved mappings.
func (s *Storage) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT account
		FROM field_mappings
		ORDER BY account
	`)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("ListAccounts: scanning row: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// ListAllMappings returns every mapping row, for snapshot export.
func (s *Storage) ListAllMappings(ctx context.Context) ([]*store.FieldMappingRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account, source, target
		FROM field_mappings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListAllMappings: query: %w", err)
	}
	defer rows.Close()

	var mappings []*store.FieldMappingRow
	for rows.Next() {
		var m store.FieldMappingRow
		if err := rows.Scan(&m.ID, &m.Account, &m.Source, &m.Target); err != nil {
			return nil, fmt.Errorf("ListAllMappings: scanning row: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}
