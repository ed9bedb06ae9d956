// Package pipeline turns a raw tabular upload into persisted transactions.
// Field mappings decide which columns (or fixed values) feed each canonical
// field, amounts pass through the currency normalizer, and categories are
// resolved against the rule table at import time.
package pipeline

import (
	"context"

	"github.com/noahpengding/peng-finance/internal/currency"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/mapping"
	"github.com/noahpengding/peng-finance/internal/objectstore"
	"github.com/noahpengding/peng-finance/internal/store"
)

// CategoryResolver answers category lookups at import time.
type CategoryResolver interface {
	Resolve(ctx context.Context, originalCategory, merchantName, description string) (string, error)
}

// ImportRequest is one upload to import.
type ImportRequest struct {
	Username string
	Account  string
	Filename string
	Data     []byte
}

// Importer drives the import pipeline.
type Importer struct {
	mappings     *mapping.Service
	resolver     CategoryResolver
	normalizer   *currency.Normalizer
	transactions store.TransactionStore

	// uploads archives raw upload bytes; nil disables archiving.
	uploads      objectstore.Store
	uploadPrefix string

	// publisher enqueues durability syncs; nil disables them.
	publisher jobs.Publisher
}

// NewImporter wires an importer. uploads and publisher may be nil.
func NewImporter(
	mappings *mapping.Service,
	resolver CategoryResolver,
	normalizer *currency.Normalizer,
	transactions store.TransactionStore,
	uploads objectstore.Store,
	uploadPrefix string,
	publisher jobs.Publisher,
) *Importer {
	return &Importer{
		mappings:     mappings,
		resolver:     resolver,
		normalizer:   normalizer,
		transactions: transactions,
		uploads:      uploads,
		uploadPrefix: uploadPrefix,
		publisher:    publisher,
	}
}

// Import runs the pipeline for one upload and returns the number of records
// inserted. A table-level parse failure or a missing required mapping aborts
// before any insertion; the insert itself is a single atomic batch, so a
// mid-batch failure persists nothing.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (int, error) {
	state := &State{Request: req}

	steps := []Step{
		&ParseTableStep{},
		&LoadMappingStep{mappings: im.mappings},
		&ValidateMappingStep{},
		&BindSourcesStep{},
		&ResolveRowsStep{resolver: im.resolver, normalizer: im.normalizer},
		&InsertRowsStep{transactions: im.transactions},
		&ArchiveUploadStep{uploads: im.uploads, prefix: im.uploadPrefix},
		&EnqueueSyncStep{publisher: im.publisher},
	}

	for _, step := range steps {
		if err := step.Execute(ctx, state); err != nil {
			return state.Inserted, err
		}
	}
	return state.Inserted, nil
}
