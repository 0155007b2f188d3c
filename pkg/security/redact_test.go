package security

import (
	"strings"
	"testing"
)

func TestRedactorHashIsStableAndOpaque(t *testing.T) {
	r := NewRedactor("k1")

	first := r.Hash("cart-123")
	second := r.Hash("cart-123")
	if first != second {
		t.Fatalf("expected deterministic digest, got %q and %q", first, second)
	}
	if len(first) != 2*digestSize {
		t.Fatalf("expected %d hex chars, got %d", 2*digestSize, len(first))
	}
	if strings.Contains(first, "cart") {
		t.Fatalf("digest leaks the identifier: %q", first)
	}
}

func TestRedactorKeyChangesDigest(t *testing.T) {
	a := NewRedactor("k1").Hash("cart-123")
	b := NewRedactor("k2").Hash("cart-123")
	if a == b {
		t.Fatalf("different keys should produce different digests")
	}
}

func TestRedactorHandlesLongKeysAndBlankIDs(t *testing.T) {
	r := NewRedactor(strings.Repeat("x", 200))
	if got := r.Hash("cart-1"); got == "" || got == "redacted" {
		t.Fatalf("long key should still hash, got %q", got)
	}
	if got := r.Hash("   "); got != "" {
		t.Fatalf("blank id should hash to empty, got %q", got)
	}

	var nilRedactor *Redactor
	if got := nilRedactor.Hash("cart-1"); got == "" {
		t.Fatalf("nil redactor should fall back to an unkeyed digest")
	}
}
