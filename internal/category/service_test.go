package category

import (
	"context"
	"testing"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/store/memory"
)

func seed(t *testing.T, db *memory.Storage, txs ...*domain.Transaction) {
	t.Helper()
	if _, err := db.InsertTransactions(context.Background(), txs); err != nil {
		t.Fatalf("seeding transactions: %v", err)
	}
}

func TestResolve_NoRuleIsEmpty(t *testing.T) {
	db := memory.NewStorage()
	svc := NewService(db, db, nil)

	got, err := svc.Resolve(context.Background(), "FOOD_AND_DRINK", "TIM HORTONS", "COFFEE")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "" {
		t.Errorf("Resolve with no rules = %q, want empty", got)
	}
}

func TestAssign_BackfillsMatchingTransactions(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, db, nil)

	seed(t, db,
		&domain.Transaction{Username: "denis", Account: "visa", OriginalCategory: "FOOD", MerchantName: "LOBLAWS", Description: "GROCERY RUN"},
		&domain.Transaction{Username: "denis", Account: "visa", OriginalCategory: "FOOD", MerchantName: "LOBLAWS", Description: "GROCERY RUN"},
		&domain.Transaction{Username: "denis", Account: "visa", OriginalCategory: "FOOD", MerchantName: "SUBWAY", Description: "LUNCH"},
	)

	updated, err := svc.Assign(ctx, "FOOD", "LOBLAWS", "GROCERY RUN", "Groceries")
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if updated != 2 {
		t.Errorf("Assign backfilled %d transactions, want 2", updated)
	}

	txs, err := db.ListForUser(ctx, "denis")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	for _, tx := range txs {
		want := ""
		if tx.MerchantName == "LOBLAWS" {
			want = "Groceries"
		}
		if tx.Category != want {
			t.Errorf("transaction %d (merchant %s) category = %q, want %q", tx.ID, tx.MerchantName, tx.Category, want)
		}
	}

	// Future lookups resolve without a new rule.
	got, err := svc.Resolve(ctx, "FOOD", "LOBLAWS", "GROCERY RUN")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "Groceries" {
		t.Errorf("Resolve after Assign = %q, want Groceries", got)
	}
}

func TestResolve_MostRecentRuleWins(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, db, nil)

	if _, err := svc.Assign(ctx, "FOOD", "LOBLAWS", "GROCERY RUN", "Food"); err != nil {
		t.Fatalf("first Assign failed: %v", err)
	}
	if _, err := svc.Assign(ctx, "FOOD", "LOBLAWS", "GROCERY RUN", "Groceries"); err != nil {
		t.Fatalf("second Assign failed: %v", err)
	}

	got, err := svc.Resolve(ctx, "FOOD", "LOBLAWS", "GROCERY RUN")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "Groceries" {
		t.Errorf("Resolve = %q, want most recent rule Groceries", got)
	}
}

func TestListCategories_SortedDistinctNonEmpty(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, db, nil)

	for _, target := range []string{"Travel", "Groceries", "Travel", "Dining"} {
		if _, err := svc.Assign(ctx, "X", target, target, target); err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
	}

	got, err := svc.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	want := []string{"Dining", "Groceries", "Travel"}
	if len(got) != len(want) {
		t.Fatalf("ListCategories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListCategories[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListUncategorized(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, db, nil)

	seed(t, db,
		&domain.Transaction{Username: "denis", MerchantName: "A", Category: ""},
		&domain.Transaction{Username: "denis", MerchantName: "B", Category: "Groceries"},
		&domain.Transaction{Username: "maria", MerchantName: "C", Category: ""},
	)

	got, err := svc.ListUncategorized(ctx, "denis")
	if err != nil {
		t.Fatalf("ListUncategorized failed: %v", err)
	}
	if len(got) != 1 || got[0].MerchantName != "A" {
		t.Errorf("ListUncategorized = %+v, want just merchant A", got)
	}
}
