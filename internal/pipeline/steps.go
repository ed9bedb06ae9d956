package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/noahpengding/peng-finance/internal/currency"
	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/mapping"
	"github.com/noahpengding/peng-finance/internal/objectstore"
	"github.com/noahpengding/peng-finance/internal/store"
)

// Step is a single stage of the import pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is the shared state threaded through the pipeline steps.
type State struct {
	Request ImportRequest

	Table      *Table
	RawSources map[domain.CanonicalField]string
	Sources    map[domain.CanonicalField]domain.FieldSource
	Candidates []*domain.Transaction
	Inserted   int
}

// ParseTableStep parses the upload bytes into a Table. Failure here aborts
// the import with nothing inserted.
type ParseTableStep struct{}

func (s *ParseTableStep) Execute(ctx context.Context, state *State) error {
	table, err := ParseCSV(state.Request.Data)
	if err != nil {
		return err
	}
	state.Table = table
	return nil
}

// LoadMappingStep fetches the account's saved field mappings.
type LoadMappingStep struct {
	mappings *mapping.Service
}

func (s *LoadMappingStep) Execute(ctx context.Context, state *State) error {
	raw, err := s.mappings.Get(ctx, state.Request.Account)
	if err != nil {
		return fmt.Errorf("loading mappings for %q: %w", state.Request.Account, err)
	}
	state.RawSources = raw
	return nil
}

// ValidateMappingStep enforces the required-field precondition before any
// row processing.
type ValidateMappingStep struct{}

func (s *ValidateMappingStep) Execute(ctx context.Context, state *State) error {
	return mapping.ValidateRequired(state.RawSources)
}

// BindSourcesStep turns raw source strings into tagged FieldSource variants
// against the uploaded table's headers.
type BindSourcesStep struct{}

func (s *BindSourcesStep) Execute(ctx context.Context, state *State) error {
	state.Sources = bindSources(state.RawSources, state.Table)
	return nil
}

// ResolveRowsStep assembles one candidate transaction per row: mapped field
// values, normalized amount, and the category the rule table answers for
// the row's triple. Malformed rows still produce a candidate.
type ResolveRowsStep struct {
	resolver   CategoryResolver
	normalizer *currency.Normalizer
}

func (s *ResolveRowsStep) Execute(ctx context.Context, state *State) error {
	t := state.Table
	req := state.Request
	candidates := make([]*domain.Transaction, 0, len(t.Rows))

	for _, row := range t.Rows {
		values := make(map[domain.CanonicalField]string, len(state.Sources))
		for field, source := range state.Sources {
			values[field] = resolveField(t, row, source)
		}

		code := values[domain.FieldCurrency]
		if code == "" {
			code = s.normalizer.Base()
		}
		amount := s.normalizer.Normalize(ctx, values[domain.FieldAmount], code)

		category, err := s.resolver.Resolve(ctx,
			values[domain.FieldOriginalCategory],
			values[domain.FieldMerchantName],
			values[domain.FieldDescription])
		if err != nil {
			return fmt.Errorf("resolving category: %w", err)
		}

		candidates = append(candidates, &domain.Transaction{
			Username:         req.Username,
			Account:          req.Account,
			Date:             values[domain.FieldDate],
			PostDate:         values[domain.FieldPostDate],
			Category:         category,
			OriginalCategory: values[domain.FieldOriginalCategory],
			MerchantName:     values[domain.FieldMerchantName],
			Description:      values[domain.FieldDescription],
			Currency:         s.normalizer.Base(),
			Amount:           amount,
		})
	}

	state.Candidates = candidates
	return nil
}

// InsertRowsStep bulk-inserts the candidates.
type InsertRowsStep struct {
	transactions store.TransactionStore
}

func (s *InsertRowsStep) Execute(ctx context.Context, state *State) error {
	inserted, err := s.transactions.InsertTransactions(ctx, state.Candidates)
	state.Inserted = inserted
	if err != nil {
		return fmt.Errorf("inserting transactions: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("username", state.Request.Username).
		Str("account", state.Request.Account).
		Int("inserted", inserted).
		Msg("Imported transactions")
	return nil
}

// ArchiveUploadStep mirrors the raw upload bytes to object storage. Archive
// failures are logged, never escalated: the rows are already in.
type ArchiveUploadStep struct {
	uploads objectstore.Store
	prefix  string
}

func (s *ArchiveUploadStep) Execute(ctx context.Context, state *State) error {
	if s.uploads == nil || state.Request.Filename == "" {
		return nil
	}
	name := objectstore.UploadObjectName(s.prefix, state.Request.Username, state.Request.Filename)
	if err := s.uploads.Push(ctx, name, bytes.NewReader(state.Request.Data)); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("object", name).Msg("Upload archive push failed")
	}
	return nil
}

// EnqueueSyncStep publishes a durability sync job for the completed import.
type EnqueueSyncStep struct {
	publisher jobs.Publisher
}

func (s *EnqueueSyncStep) Execute(ctx context.Context, state *State) error {
	if s.publisher == nil {
		return nil
	}
	err := s.publisher.PublishSync(ctx, &jobs.SyncJob{
		Reason:   "import",
		Username: state.Request.Username,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Could not enqueue snapshot sync")
	}
	return nil
}
