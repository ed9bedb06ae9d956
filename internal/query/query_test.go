package query

import (
	"testing"

	"github.com/noahpengding/peng-finance/internal/domain"
)

func sample() []*domain.Transaction {
	return []*domain.Transaction{
		{ID: 1, Account: "visa", PostDate: "2025-03-01", Category: "Groceries", MerchantName: "LOBLAWS", Amount: -50.25},
		{ID: 2, Account: "visa", PostDate: "2025-03-02", Category: "", MerchantName: "SUBWAY", Amount: -12.00},
		{ID: 3, Account: "chequing", PostDate: "2025-03-01", Category: "Income", MerchantName: "ACME CORP", Amount: 3500.00},
	}
}

func TestFilter_Conjunctive(t *testing.T) {
	txs := sample()

	got := Filter(txs,
		[]string{"visa"},
		[]string{"2025-03-01", "2025-03-02"},
		[]string{"Groceries", ""},
		[]string{"LOBLAWS"},
	)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("Filter = %+v, want only transaction 1", got)
	}

	// Same filters minus the matching merchant: nothing passes.
	got = Filter(txs,
		[]string{"visa"},
		[]string{"2025-03-01", "2025-03-02"},
		[]string{"Groceries", ""},
		[]string{"SUBWAY"},
	)
	if len(got) != 0 {
		t.Errorf("Filter with non-matching merchant = %+v, want none", got)
	}
}

func TestFilter_FullUniverseIsIdentity(t *testing.T) {
	txs := sample()
	opts := FilterOptions(txs)

	got := Filter(txs, opts.Accounts, opts.PostDates, opts.Categories, opts.Merchants)
	if len(got) != len(txs) {
		t.Fatalf("Filter(full universes) kept %d of %d transactions", len(got), len(txs))
	}
	for i := range txs {
		if got[i].ID != txs[i].ID {
			t.Errorf("Filter reordered: got[%d].ID = %d, want %d", i, got[i].ID, txs[i].ID)
		}
	}
}

func TestFilter_EmptySetSelectsNothing(t *testing.T) {
	txs := sample()
	opts := FilterOptions(txs)

	got := Filter(txs, nil, opts.PostDates, opts.Categories, opts.Merchants)
	if len(got) != 0 {
		t.Errorf("Filter with empty account set = %+v, want none", got)
	}
}

func TestFilterOptions_CategorySentinel(t *testing.T) {
	// No uncategorized transactions: the universe still gains "".
	txs := []*domain.Transaction{
		{Account: "visa", PostDate: "2025-03-01", Category: "Groceries", MerchantName: "LOBLAWS"},
	}
	opts := FilterOptions(txs)

	found := false
	for _, c := range opts.Categories {
		if c == "" {
			found = true
		}
	}
	if !found {
		t.Errorf("Categories = %v, want empty-string sentinel included", opts.Categories)
	}
}

func TestAggregate(t *testing.T) {
	totals := Aggregate(sample())
	if totals.Count != 3 {
		t.Errorf("Count = %d, want 3", totals.Count)
	}
	want := -50.25 - 12.00 + 3500.00
	if totals.Sum != want {
		t.Errorf("Sum = %v, want %v", totals.Sum, want)
	}

	empty := Aggregate(nil)
	if empty.Count != 0 || empty.Sum != 0 {
		t.Errorf("Aggregate(nil) = %+v, want zero totals", empty)
	}
}
