package billing

import (
	"strings"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}

		if len(code) != CodeLength {
			t.Fatalf("expected %d chars, got %q", CodeLength, code)
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
		seen[code] = true
	}

	// 32^9 possible codes; 1000 draws colliding would point at a broken RNG
	if len(seen) < 990 {
		t.Errorf("suspiciously many collisions: %d unique of 1000", len(seen))
	}
}

func TestCodeAlphabetOmitsConfusables(t *testing.T) {
	for _, c := range "01OI" {
		if strings.ContainsRune(codeAlphabet, c) {
			t.Errorf("alphabet must not contain %q", c)
		}
	}
}
