package authcore_test

import (
	"context"
	"errors"
	"testing"

	authcore "github.com/UlyssesAndy/HR-Portal-sub001"
	"github.com/UlyssesAndy/HR-Portal-sub001/password"
)

func TestChangePassword(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	record := provisionTestUser(t, engine)
	ctx := context.Background()

	current := loginTestUser(t, engine)
	other := loginTestUser(t, engine)

	const newPassword = "N3w!passphrase"
	if err := engine.ChangePassword(ctx, record.ID, testPassword, newPassword, current.SessionID); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// The old password no longer works.
	_, err := engine.Authenticate(ctx, authcore.PasswordAttempt{
		Email:    testEmail,
		Password: testPassword,
	})
	if !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}

	// The new one does.
	if _, err := engine.Authenticate(ctx, authcore.PasswordAttempt{
		Email:    testEmail,
		Password: newPassword,
	}); err != nil {
		t.Fatalf("expected new password to log in, got %v", err)
	}

	// Every other session died with the change; the caller's survived.
	if _, err := engine.Validate(ctx, other.Token); !errors.Is(err, authcore.ErrUnauthorized) {
		t.Fatalf("expected other session to be revoked, got %v", err)
	}
	if _, err := engine.Validate(ctx, current.Token); err != nil {
		t.Fatalf("expected caller's session to survive, got %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	record := provisionTestUser(t, engine)
	result := loginTestUser(t, engine)

	err := engine.ChangePassword(context.Background(), record.ID, "Wr0ng!pass", "N3w!passphrase", result.SessionID)
	if !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordWeakNew(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	record := provisionTestUser(t, engine)
	result := loginTestUser(t, engine)

	err := engine.ChangePassword(context.Background(), record.ID, testPassword, "weak", result.SessionID)
	if !errors.Is(err, password.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	var policyErr *password.PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected *PolicyError, got %T", err)
	}
	if len(policyErr.Reasons) == 0 {
		t.Fatal("expected policy reasons")
	}
}

func TestChangePasswordReuse(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	record := provisionTestUser(t, engine)
	result := loginTestUser(t, engine)

	err := engine.ChangePassword(context.Background(), record.ID, testPassword, testPassword, result.SessionID)
	if !errors.Is(err, authcore.ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
}

func TestProvisionCredential(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	record, err := engine.ProvisionCredential(ctx, authcore.ProvisionInput{
		Email:    "  New.Hire@Example.COM ",
		Name:     "New Hire",
		Roles:    []string{"employee"},
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("ProvisionCredential failed: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected an assigned ID")
	}
	if record.Email != "new.hire@example.com" {
		t.Fatalf("expected normalized email, got %q", record.Email)
	}

	stored, err := store.GetByEmail(ctx, "new.hire@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if stored.ID != record.ID {
		t.Fatalf("expected stored record %q, got %q", record.ID, stored.ID)
	}
	if stored.PasswordHash == "" {
		t.Fatal("expected a password hash")
	}
}

func TestProvisionCredentialDuplicateEmail(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	provisionTestUser(t, engine)

	_, err := engine.ProvisionCredential(context.Background(), authcore.ProvisionInput{
		Email:    testEmail,
		Name:     "Duplicate",
		Password: testPassword,
	})
	if !errors.Is(err, authcore.ErrCredentialExists) {
		t.Fatalf("expected ErrCredentialExists, got %v", err)
	}
}

func TestProvisionCredentialWeakPassword(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.ProvisionCredential(context.Background(), authcore.ProvisionInput{
		Email:    "weak@example.com",
		Password: "short",
	})
	if !errors.Is(err, password.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestProvisionCredentialMagicLinkOnly(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	record, err := engine.ProvisionCredential(ctx, authcore.ProvisionInput{
		Email: "linkonly@example.com",
		Name:  "Link Only",
	})
	if err != nil {
		t.Fatalf("ProvisionCredential failed: %v", err)
	}
	if record.PasswordHash != "" {
		t.Fatal("expected no password hash")
	}

	// Password login fails; an empty guess is not a free pass.
	_, err = engine.Authenticate(ctx, authcore.PasswordAttempt{
		Email:    "linkonly@example.com",
		Password: "",
	})
	if !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// Magic links are the account's way in.
	link, err := engine.IssueMagicLink(ctx, "linkonly@example.com")
	if err != nil {
		t.Fatalf("IssueMagicLink failed: %v", err)
	}
	if _, err := engine.RedeemMagicLink(ctx, link.Token); err != nil {
		t.Fatalf("expected magic-link login, got %v", err)
	}
}

func TestPasswordUpgradeOnLogin(t *testing.T) {
	// The engine hashes with Time=2; the planted digest uses Time=1.
	engine, store := newTestEngine(t, func(cfg *authcore.Config) {
		cfg.Password.Time = 2
	})
	record := provisionTestUser(t, engine)
	ctx := context.Background()

	weak, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	oldHash, err := weak.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if err := store.UpdatePasswordHash(ctx, record.ID, oldHash); err != nil {
		t.Fatalf("UpdatePasswordHash failed: %v", err)
	}

	if _, err := engine.Authenticate(ctx, authcore.PasswordAttempt{
		Email:    testEmail,
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	upgraded, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if upgraded.PasswordHash == oldHash {
		t.Fatal("expected the digest to be rehashed under current parameters")
	}
	if _, err := engine.Authenticate(ctx, authcore.PasswordAttempt{
		Email:    testEmail,
		Password: testPassword,
	}); err != nil {
		t.Fatalf("expected login after upgrade, got %v", err)
	}
}
