package password

import (
	"strings"
	"sync"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	encoded, err := hasher.Hash("Sup3r$ecret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	ok, err := hasher.Verify("Sup3r$ecret", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = hasher.Verify("Sup3r$ecreT", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	first, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct digests for the same password")
	}
}

func TestVerifyRejectsMalformedDigests(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	inputs := []string{
		"",
		"not a digest",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	}

	for _, in := range inputs {
		if _, err := hasher.Verify("whatever", in); err == nil {
			t.Fatalf("expected Verify of %q to fail", in)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	encoded, err := weak.Hash("Sup3r$ecret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strongCfg := testConfig()
	strongCfg.Memory = 64 * 1024
	strong, err := NewArgon2(strongCfg)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	upgrade, err := strong.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if !upgrade {
		t.Fatal("expected weaker digest to need an upgrade")
	}

	upgrade, err = weak.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if upgrade {
		t.Fatal("expected current digest to not need an upgrade")
	}

	// The stronger hasher still verifies the old digest under its embedded
	// parameters.
	ok, err := strong.Verify("Sup3r$ecret", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected old digest to verify under embedded parameters")
	}
}

func TestConcurrencyGate(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 2
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	encoded, err := hasher.Hash("Sup3r$ecret")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := hasher.Verify("Sup3r$ecret", encoded)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent Verify failed: %v", err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Memory = 1024 },
		func(c *Config) { c.Time = 0 },
		func(c *Config) { c.Parallelism = 0 },
		func(c *Config) { c.SaltLength = 8 },
		func(c *Config) { c.KeyLength = 8 },
		func(c *Config) { c.MaxConcurrent = -1 },
	}

	for i, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("case %d: expected config to be rejected", i)
		}
	}
}
