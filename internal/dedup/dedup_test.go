package dedup

import (
	"context"
	"testing"

	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/store/memory"
)

func tx(username, merchant string, amount float64) *domain.Transaction {
	return &domain.Transaction{
		Username:     username,
		Account:      "visa",
		Date:         "2025-03-01",
		PostDate:     "2025-03-02",
		MerchantName: merchant,
		Description:  merchant + " PURCHASE",
		Currency:     "CAD",
		Amount:       amount,
	}
}

func TestDeduplicate_KeepsFirstOccurrence(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, nil)

	first := tx("denis", "LOBLAWS", -50.25)
	second := tx("denis", "LOBLAWS", -50.25)
	third := tx("denis", "SUBWAY", -12.00)
	if _, err := db.InsertTransactions(ctx, []*domain.Transaction{first, second, third}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	removed, err := svc.Deduplicate(ctx, "denis")
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Deduplicate removed %d, want 1", removed)
	}

	remaining, err := db.ListForUser(ctx, "denis")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("%d transactions remain, want 2", len(remaining))
	}
	if remaining[0].ID != first.ID {
		t.Errorf("first occurrence (id %d) was not the one retained", first.ID)
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, nil)

	if _, err := db.InsertTransactions(ctx, []*domain.Transaction{
		tx("denis", "LOBLAWS", -50.25),
		tx("denis", "LOBLAWS", -50.25),
		tx("denis", "LOBLAWS", -50.25),
	}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	removed, err := svc.Deduplicate(ctx, "denis")
	if err != nil {
		t.Fatalf("first Deduplicate failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("first Deduplicate removed %d, want 2", removed)
	}

	removed, err = svc.Deduplicate(ctx, "denis")
	if err != nil {
		t.Fatalf("second Deduplicate failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("second Deduplicate removed %d, want 0", removed)
	}
}

func TestDeduplicate_IDExcludedFromKey(t *testing.T) {
	// Rows differing only by id are duplicates; rows differing in any other
	// field are not.
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, nil)

	a := tx("denis", "LOBLAWS", -50.25)
	b := tx("denis", "LOBLAWS", -50.25)
	c := tx("denis", "LOBLAWS", -50.26) // amount differs by a cent
	if _, err := db.InsertTransactions(ctx, []*domain.Transaction{a, b, c}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	removed, err := svc.Deduplicate(ctx, "denis")
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Deduplicate removed %d, want 1", removed)
	}
}

func TestDeduplicate_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStorage()
	svc := NewService(db, nil)

	if _, err := db.InsertTransactions(ctx, []*domain.Transaction{
		tx("denis", "LOBLAWS", -50.25),
		tx("maria", "LOBLAWS", -50.25),
	}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	removed, err := svc.Deduplicate(ctx, "denis")
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Deduplicate removed %d rows across users, want 0", removed)
	}
}
