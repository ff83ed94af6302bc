package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyagoodarzi28/ModernBlog/internal/account"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
)

// fakeLockout counts failures in memory with a fixed threshold.
type fakeLockout struct {
	max    int
	counts map[string]int
}

func newFakeLockout(max int) *fakeLockout {
	return &fakeLockout{max: max, counts: make(map[string]int)}
}

func (f *fakeLockout) Locked(ctx context.Context, key string) (bool, error) {
	return f.counts[key] >= f.max, nil
}

func (f *fakeLockout) RecordFailure(ctx context.Context, key string) error {
	f.counts[key]++
	return nil
}

func (f *fakeLockout) Reset(ctx context.Context, key string) error {
	delete(f.counts, key)
	return nil
}

func newTestService(max int) (*Service, *account.MemoryStore, *fakeLockout) {
	store := account.NewMemoryStore()
	lockout := newFakeLockout(max)
	return NewService(store, lockout), store, lockout
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(5)
	ctx := context.Background()

	id, err := svc.Register(ctx, "a@x.com", "correct-horse", "Ada")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := svc.Authenticate(ctx, "a@x.com", "correct-horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got != id {
		t.Errorf("Authenticate = %q, want %q", got, id)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(5)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@x.com", "correct-horse", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.Register(ctx, "A@X.COM", "battery-staple", "")
	if !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestRegister_PasswordTooShort(t *testing.T) {
	svc, store, _ := newTestService(5)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@x.com", "short", "")
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}

	if accounts, _ := store.Counts(); accounts != 0 {
		t.Errorf("accounts = %d, want 0", accounts)
	}
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	svc, store, _ := newTestService(5)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "known@x.com", "correct-horse", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Social-only account: no password hash at all.
	if _, err := store.CreateAccount(ctx, account.NewAccount{Email: "social@x.com"}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	cases := []struct {
		name  string
		email string
	}{
		{"wrong password", "known@x.com"},
		{"unknown email", "nobody@x.com"},
		{"social-only account", "social@x.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := svc.Authenticate(ctx, tc.email, "wrong-password")
			if err != auth.ErrInvalidCredentials {
				t.Fatalf("err = %v, want exactly auth.ErrInvalidCredentials", err)
			}
			if id != "" {
				t.Errorf("got account id %q on failure", id)
			}
		})
	}
}

func TestAuthenticate_LockoutEngagesAfterMaxFailures(t *testing.T) {
	svc, _, _ := newTestService(3)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@x.com", "correct-horse", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Authenticate(ctx, "a@x.com", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i, err)
		}
	}

	// Even the correct password is refused while locked.
	_, err := svc.Authenticate(ctx, "a@x.com", "correct-horse")
	if !errors.Is(err, auth.ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
}

func TestAuthenticate_SuccessResetsFailureCounter(t *testing.T) {
	svc, _, lockout := newTestService(3)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@x.com", "correct-horse", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 2; i++ {
		svc.Authenticate(ctx, "a@x.com", "wrong")
	}

	if _, err := svc.Authenticate(ctx, "a@x.com", "correct-horse"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if lockout.counts["a@x.com"] != 0 {
		t.Errorf("counter = %d after success, want 0", lockout.counts["a@x.com"])
	}

	// Two more failures fit inside a fresh window.
	for i := 0; i < 2; i++ {
		if _, err := svc.Authenticate(ctx, "a@x.com", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("post-reset attempt %d: err = %v", i, err)
		}
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService(5)
	ctx := context.Background()

	id, err := svc.Register(ctx, "a@x.com", "correct-horse", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.ChangePassword(ctx, id, "wrong", "battery-staple"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("wrong current: err = %v, want ErrInvalidCredentials", err)
	}

	if err := svc.ChangePassword(ctx, id, "correct-horse", "battery-staple"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "a@x.com", "correct-horse"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "a@x.com", "battery-staple"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
