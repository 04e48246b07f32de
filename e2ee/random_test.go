package e2ee

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerateRoomIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{5}-[A-Z0-9]{5}$`)
	for i := 0; i < 10000; i++ {
		id, err := GenerateRoomID()
		if err != nil {
			t.Fatalf("generate room id: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("room id %q does not match the 5-5 format", id)
		}
		for _, c := range id {
			if c == '-' {
				continue
			}
			if !strings.ContainsRune(CharsBase58UpperCase, c) {
				t.Fatalf("room id %q contains ambiguous character %q", id, c)
			}
		}
	}
}

func TestGenerateUserIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-zA-Z0-9]{16}--[0-9]{6}$`)
	for i := 0; i < 1000; i++ {
		id, err := GenerateUserID()
		if err != nil {
			t.Fatalf("generate user id: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("user id %q does not match token--code format", id)
		}
	}
}

func TestGenerateEncryptionKeyFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-f0-9]{64}$`)
	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if !pattern.MatchString(key) {
		t.Fatalf("key %q is not 64 hex chars", key)
	}
}

// Rejection sampling must hold for set sizes that divide 256 evenly and for
// ones that do not.
func TestRandomStringUniformity(t *testing.T) {
	for _, chars := range []string{CharsNumberOnly, CharsNumberAndLetter} {
		counts := make(map[rune]int, len(chars))
		const rounds = 200
		const perRound = 500
		total := rounds * perRound
		for i := 0; i < rounds; i++ {
			s, err := RandomString(perRound, RandomStringOptions{Chars: chars})
			if err != nil {
				t.Fatalf("random string: %v", err)
			}
			for _, c := range s {
				counts[c]++
			}
		}
		if len(counts) != len(chars) {
			t.Fatalf("expected all %d characters to appear, got %d", len(chars), len(counts))
		}
		expected := float64(total) / float64(len(chars))
		for c, n := range counts {
			ratio := float64(n) / expected
			if ratio < 0.8 || ratio > 1.2 {
				t.Fatalf("character %q frequency %d deviates from expected %.0f (set size %d)",
					c, n, expected, len(chars))
			}
		}
	}
}

func TestRandomStringGrouping(t *testing.T) {
	s, err := RandomString(10, RandomStringOptions{
		Chars:          CharsBase58UpperCase,
		GroupSize:      5,
		GroupSeparator: "-",
	})
	if err != nil {
		t.Fatalf("random string: %v", err)
	}
	if len(s) != 11 || s[5] != '-' {
		t.Fatalf("expected 5-5 grouping, got %q", s)
	}
}

func TestRandomStringErrors(t *testing.T) {
	if _, err := RandomString(0, RandomStringOptions{Chars: CharsNumberOnly}); CodeOf(err) != CodeInvalidLength {
		t.Fatalf("expected InvalidLength for zero length, got %v", err)
	}
	if _, err := RandomString(-3, RandomStringOptions{Chars: CharsNumberOnly}); CodeOf(err) != CodeInvalidLength {
		t.Fatalf("expected InvalidLength for negative length, got %v", err)
	}
}

func TestAddSeparator(t *testing.T) {
	out, err := AddSeparator("ABCDEFGH", 3, "-")
	if err != nil {
		t.Fatalf("add separator: %v", err)
	}
	if out != "ABC-DEF-GH" {
		t.Fatalf("expected ABC-DEF-GH, got %q", out)
	}

	out, err = AddSeparator("", 3, "-")
	if err != nil || out != "" {
		t.Fatalf("expected empty string passthrough, got %q, %v", out, err)
	}

	if _, err := AddSeparator("ABC", 0, "-"); CodeOf(err) != CodeInvalidGroupSize {
		t.Fatalf("expected InvalidGroupSize, got %v", err)
	}
}
