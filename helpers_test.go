package authcore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/UlyssesAndy/HR-Portal-sub001"
	"github.com/UlyssesAndy/HR-Portal-sub001/memstore"
)

const (
	testPassword = "Str0ng!pass"
	testEmail    = "casey@example.com"
)

func testConfig() authcore.Config {
	return authcore.Config{
		JWT: authcore.JWTConfig{
			AccessTTL:     30 * 24 * time.Hour,
			SigningMethod: "hs256",
			PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
			Issuer:        "hr-portal",
		},
		Session: authcore.SessionConfig{
			RedisPrefix: "hs",
			Lifetime:    30 * 24 * time.Hour,
		},
		TOTP: authcore.TOTPConfig{
			Issuer:    "HR Portal",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
		},
		Password: authcore.PasswordConfig{
			Memory:         8 * 1024,
			Time:           1,
			Parallelism:    1,
			SaltLength:     16,
			KeyLength:      16,
			UpgradeOnLogin: true,
		},
		PasswordPolicy: authcore.PasswordPolicyConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireDigit:     true,
			RequireSpecial:   true,
		},
		MagicLink: authcore.MagicLinkConfig{
			TTL:     15 * time.Minute,
			BaseURL: "https://portal.example.com/auth/magic",
		},
		Lockout: authcore.LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		BackupCodes: authcore.BackupCodeConfig{
			Count:  10,
			Length: 8,
		},
		RateLimit: authcore.RateLimitConfig{
			// Off by default so lockout tests can exceed the auth budget;
			// rate-limit tests switch it on.
			Enabled:     false,
			RedisPrefix: "hrl",
			PerIP:       true,
		},
		ValidationMode: authcore.ModeStrict,
	}
}

func newTestEngine(t *testing.T, mutate func(*authcore.Config)) (*authcore.Engine, *memstore.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := memstore.NewStore()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

func newTestEngineWithSink(t *testing.T, sink authcore.AuditSink) (*authcore.Engine, *memstore.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.Audit.BufferSize = 64

	store := memstore.NewStore()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

func provisionTestUser(t *testing.T, engine *authcore.Engine) authcore.CredentialRecord {
	t.Helper()

	record, err := engine.ProvisionCredential(context.Background(), authcore.ProvisionInput{
		Email:    testEmail,
		Name:     "Casey Doe",
		Roles:    []string{"employee"},
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("ProvisionCredential failed: %v", err)
	}
	return record
}

func loginTestUser(t *testing.T, engine *authcore.Engine) *authcore.LoginResult {
	t.Helper()

	result, err := engine.Authenticate(context.Background(), authcore.PasswordAttempt{
		Email:    testEmail,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return result
}
