package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/objectstore"
	"github.com/noahpengding/peng-finance/internal/store"
)

// CurrentObject is the object name of the latest snapshot under the
// configured prefix. Each sync also writes a timestamped archive copy.
const CurrentObject = "peng-finance.json"

// Document is the serialized form of the whole persisted store.
type Document struct {
	ExportedAt   time.Time                `json:"exported_at"`
	Transactions []*domain.Transaction    `json:"transactions"`
	Users        []*domain.User           `json:"users"`
	Mappings     []*store.FieldMappingRow `json:"field_mappings"`
	Rules        []*domain.CategoryRule   `json:"category_rules"`
}

// Service exports the persisted store and mirrors it to object storage.
// Sync is idempotent: the current object is overwritten in place.
type Service struct {
	transactions store.TransactionStore
	mappings     store.MappingStore
	rules        store.RuleStore
	users        store.UserStore
	objects      objectstore.Store
	prefix       string
}

// NewService wires a snapshot service.
func NewService(
	transactions store.TransactionStore,
	mappings store.MappingStore,
	rules store.RuleStore,
	users store.UserStore,
	objects objectstore.Store,
	prefix string,
) *Service {
	return &Service{
		transactions: transactions,
		mappings:     mappings,
		rules:        rules,
		users:        users,
		objects:      objects,
		prefix:       prefix,
	}
}

// Sync exports all four tables and pushes the document to the mirror.
func (s *Service) Sync(ctx context.Context) error {
	log := logger.FromContext(ctx)

	doc, err := s.export(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("Sync: marshaling snapshot: %w", err)
	}

	current := path.Join(s.prefix, CurrentObject)
	if err := s.objects.Push(ctx, current, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("Sync: pushing snapshot: %w", err)
	}

	archive := path.Join(s.prefix, "archive",
		fmt.Sprintf("%s-%s.json", doc.ExportedAt.UTC().Format("20060102T150405Z"), uuid.NewString()[:8]))
	if err := s.objects.Push(ctx, archive, bytes.NewReader(data)); err != nil {
		// The current object already made it; losing one archive copy is
		// not worth a retry cycle.
		log.Warn().Err(err).Str("object", archive).Msg("Archive snapshot push failed")
	}

	log.Info().
		Int("transactions", len(doc.Transactions)).
		Int("rules", len(doc.Rules)).
		Str("object", current).
		Msg("Store snapshot synced")
	return nil
}

// Restore fetches the current snapshot document from the mirror.
func (s *Service) Restore(ctx context.Context) (*Document, error) {
	data, err := s.objects.Fetch(ctx, path.Join(s.prefix, CurrentObject))
	if err != nil {
		return nil, fmt.Errorf("Restore: fetching snapshot: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("Restore: unmarshaling snapshot: %w", err)
	}
	return &doc, nil
}

func (s *Service) export(ctx context.Context) (*Document, error) {
	txs, err := s.transactions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: listing transactions: %w", err)
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: listing users: %w", err)
	}
	mappings, err := s.mappings.ListAllMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: listing mappings: %w", err)
	}
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: listing rules: %w", err)
	}

	return &Document{
		ExportedAt:   time.Now(),
		Transactions: txs,
		Users:        users,
		Mappings:     mappings,
		Rules:        rules,
	}, nil
}
