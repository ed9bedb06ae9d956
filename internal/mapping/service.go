// Package mapping manages per-account field-mapping configurations: which
// CSV columns (or fixed values) feed each canonical transaction field.
package mapping

import (
	"context"
	"fmt"
	"strings"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/store"
)

// FieldResolutionError reports required canonical fields with no resolvable
// source. It blocks an import before any row processing.
type FieldResolutionError struct {
	Missing []domain.CanonicalField
}

func (e *FieldResolutionError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("required fields have no source: %s", strings.Join(names, ", "))
}

// Service answers mapping lookups and saves with replace-on-save semantics.
type Service struct {
	store store.MappingStore
}

// NewService creates a mapping service.
func NewService(s store.MappingStore) *Service {
	return &Service{store: s}
}

// Get returns the account's saved mapping set. Unknown accounts yield an
// empty map.
func (s *Service) Get(ctx context.Context, account string) (map[domain.CanonicalField]string, error) {
	return s.store.GetMappings(ctx, account)
}

// Save fully replaces the account's mapping set. Unknown canonical field
// names are rejected before anything is written.
func (s *Service) Save(ctx context.Context, account string, mappings map[domain.CanonicalField]string) error {
	known := make(map[domain.CanonicalField]bool, len(domain.CanonicalFields))
	for _, f := range domain.CanonicalFields {
		known[f] = true
	}
	for field := range mappings {
		if !known[field] {
			return fmt.Errorf("Save: unknown canonical field %q", field)
		}
	}

	if err := s.store.ReplaceMappings(ctx, account, mappings); err != nil {
		return fmt.Errorf("Save: replacing mappings for %q: %w", account, err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("account", account).
		Int("fields", len(mappings)).
		Msg("Saved field mappings")
	return nil
}

// ListAccounts returns the accounts that have a saved mapping. An account
// that only has transactions does not appear here.
func (s *Service) ListAccounts(ctx context.Context) ([]string, error) {
	return s.store.ListAccounts(ctx)
}

// ValidateRequired returns a *FieldResolutionError when any required
// canonical field is missing or maps to an empty source.
func ValidateRequired(mappings map[domain.CanonicalField]string) error {
	var missing []domain.CanonicalField
	for _, field := range domain.RequiredFields {
		if strings.TrimSpace(mappings[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &FieldResolutionError{Missing: missing}
	}
	return nil
}
