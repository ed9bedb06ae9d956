package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/noahpengding/peng-finance/internal/store/memory"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStorage())

	user, err := svc.Register(ctx, "alice", "hunter2", "alice@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.PasswordHash == "hunter2" || user.PasswordHash == "" {
		t.Fatalf("password stored without hashing")
	}

	token, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("Login returned empty token")
	}

	ok, err := svc.Verify(ctx, "alice", token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify rejected a freshly issued token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStorage())

	if _, err := svc.Register(ctx, "alice", "hunter2", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRotatesToken(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStorage())

	if _, err := svc.Register(ctx, "alice", "hunter2", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	first, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if first == second {
		t.Error("second login reused the previous token")
	}

	ok, err := svc.Verify(ctx, "alice", first)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("stale token still verifies after rotation")
	}
}
