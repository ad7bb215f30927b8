package shard

import (
	"testing"
)

func TestUniqueConstraintPK(t *testing.T) {
	pk := UniqueConstraintPK("user", "user", "email", "ada@example.com")

	// 128-bit hash rendered as hex
	if len(pk) != 32 {
		t.Errorf("expected 32 hex chars, got %d (%q)", len(pk), pk)
	}
	for _, r := range pk {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("expected lowercase hex, got %q", pk)
		}
	}
}

func TestUniqueConstraintPK_Deterministic(t *testing.T) {
	a := UniqueConstraintPK("user", "user", "email", "ada@example.com")
	b := UniqueConstraintPK("user", "user", "email", "ada@example.com")
	if a != b {
		t.Errorf("expected same key for same input, got %q and %q", a, b)
	}
}

func TestUniqueConstraintPK_Uniqueness(t *testing.T) {
	tests := []struct {
		name                           string
		scope, entityType, field, value string
	}{
		{"base", "user", "user", "email", "ada@example.com"},
		{"different value", "user", "user", "email", "grace@example.com"},
		{"different field", "user", "user", "username", "ada@example.com"},
		{"different type", "user", "company", "email", "ada@example.com"},
		{"different scope", "user#u1", "user", "email", "ada@example.com"},
	}

	seen := make(map[string]string)
	for _, tt := range tests {
		pk := UniqueConstraintPK(tt.scope, tt.entityType, tt.field, tt.value)
		if prev, ok := seen[pk]; ok {
			t.Errorf("%s collides with %s", tt.name, prev)
		}
		seen[pk] = tt.name
	}
}

func TestUniqueConstraintPK_CaseSensitive(t *testing.T) {
	lower := UniqueConstraintPK("user", "user", "email", "ada@example.com")
	upper := UniqueConstraintPK("user", "user", "email", "ADA@example.com")
	if lower == upper {
		t.Error("expected case to matter; callers normalize values before hashing")
	}
}

func TestUniqueConstraintPK_EmptyInputs(t *testing.T) {
	pk := UniqueConstraintPK("", "", "", "")
	if len(pk) != 32 {
		t.Errorf("expected 32 hex chars for empty inputs, got %d", len(pk))
	}
}

func BenchmarkUniqueConstraintPK(b *testing.B) {
	for i := 0; i < b.N; i++ {
		UniqueConstraintPK("user", "user", "email", "ada@example.com")
	}
}
