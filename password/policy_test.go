package password

import (
	"errors"
	"testing"
)

func TestPolicyAcceptsStrongPassword(t *testing.T) {
	if err := DefaultPolicy.Check("Str0ng!pass"); err != nil {
		t.Fatalf("expected password to pass: %v", err)
	}
}

func TestPolicyReportsAllReasons(t *testing.T) {
	err := DefaultPolicy.Check("abc")
	if err == nil {
		t.Fatal("expected weak password to be rejected")
	}
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected *PolicyError, got %T", err)
	}

	want := []string{
		"must be at least 8 characters",
		"must contain an uppercase letter",
		"must contain a digit",
		"must contain a special character",
	}
	if len(policyErr.Reasons) != len(want) {
		t.Fatalf("expected %d reasons, got %v", len(want), policyErr.Reasons)
	}
	for i, reason := range want {
		if policyErr.Reasons[i] != reason {
			t.Fatalf("reason %d: got %q, want %q", i, policyErr.Reasons[i], reason)
		}
	}
}

func TestPolicySingleMissingCriterion(t *testing.T) {
	err := DefaultPolicy.Check("Str0ngpass")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected *PolicyError, got %v", err)
	}
	if len(policyErr.Reasons) != 1 || policyErr.Reasons[0] != "must contain a special character" {
		t.Fatalf("unexpected reasons: %v", policyErr.Reasons)
	}
}

func TestPolicyCountsRunesNotBytes(t *testing.T) {
	// Eight runes, more than eight bytes.
	if err := DefaultPolicy.Check("Pä55wör!"); err != nil {
		t.Fatalf("expected rune-length password to pass: %v", err)
	}
}

func TestPolicyCustomSpecialSet(t *testing.T) {
	p := DefaultPolicy
	p.SpecialChars = "#"

	if err := p.Check("Str0ng!pass"); err == nil {
		t.Fatal("expected '!' to not count as special under custom set")
	}
	if err := p.Check("Str0ng#pass"); err != nil {
		t.Fatalf("expected '#' to satisfy custom set: %v", err)
	}
}

func TestPolicyDisabledCriteria(t *testing.T) {
	p := Policy{MinLength: 4}
	if err := p.Check("aaaa"); err != nil {
		t.Fatalf("expected relaxed policy to pass: %v", err)
	}
}
