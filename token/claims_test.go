package token

import (
	"testing"
)

func TestParseScopes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single scope",
			input: "calendar.read",
			want:  []string{"calendar.read"},
		},
		{
			name:  "multiple scopes sorted",
			input: "mail.read calendar.read",
			want:  []string{"calendar.read", "mail.read"},
		},
		{
			name:  "duplicates removed",
			input: "calendar.read calendar.read mail.read",
			want:  []string{"calendar.read", "mail.read"},
		},
		{
			name:  "extra whitespace ignored",
			input: "  calendar.read   mail.read  ",
			want:  []string{"calendar.read", "mail.read"},
		},
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseScopes(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseScopes(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseScopes(%q) = %v, want %v", tt.input, got, tt.want)
				}
			}
		})
	}
}

func TestSubsetOf(t *testing.T) {
	tests := []struct {
		name  string
		sub   []string
		super []string
		want  bool
	}{
		{
			name:  "equal sets",
			sub:   []string{"calendar.read", "mail.read"},
			super: []string{"calendar.read", "mail.read"},
			want:  true,
		},
		{
			name:  "proper subset",
			sub:   []string{"calendar.read"},
			super: []string{"calendar.read", "mail.read"},
			want:  true,
		},
		{
			name:  "empty subset of anything",
			sub:   nil,
			super: []string{"calendar.read"},
			want:  true,
		},
		{
			name:  "superset is not a subset",
			sub:   []string{"calendar.read", "mail.read"},
			super: []string{"calendar.read"},
			want:  false,
		},
		{
			name:  "disjoint sets",
			sub:   []string{"mail.read"},
			super: []string{"calendar.read"},
			want:  false,
		},
		{
			name:  "nothing is a subset of the empty set except the empty set",
			sub:   []string{"calendar.read"},
			super: nil,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubsetOf(tt.sub, tt.super); got != tt.want {
				t.Errorf("SubsetOf(%v, %v) = %v, want %v", tt.sub, tt.super, got, tt.want)
			}
		})
	}
}

func TestHasScope(t *testing.T) {
	claims := &Claims{Scopes: []string{"calendar.read", "mail.read"}}

	if !claims.HasScope("calendar.read") {
		t.Error("expected calendar.read to be present")
	}
	if claims.HasScope("calendar.write") {
		t.Error("did not expect calendar.write to be present")
	}

	// Membership is exact, never prefix matching
	if claims.HasScope("calendar") {
		t.Error("prefix of a scope must not match")
	}
	if claims.HasScope("calendar.read.extra") {
		t.Error("extension of a scope must not match")
	}
}

func TestHasAllScopes(t *testing.T) {
	claims := &Claims{Scopes: []string{"calendar.read", "mail.read"}}

	if !claims.HasAllScopes([]string{"calendar.read", "mail.read"}) {
		t.Error("expected full set to be present")
	}
	if !claims.HasAllScopes(nil) {
		t.Error("empty requirement is always satisfied")
	}
	if claims.HasAllScopes([]string{"calendar.read", "calendar.write"}) {
		t.Error("missing scope must fail the check")
	}
}
