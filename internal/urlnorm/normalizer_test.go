package urlnorm

import (
	"errors"
	"testing"
)

// TestNormalize tests canonical key generation.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "already canonical",
			in:   "http://example.com/page",
			want: "http://example.com/page",
		},
		{
			name: "uppercase scheme and host",
			in:   "HTTP://Example.COM/page",
			want: "http://example.com/page",
		},
		{
			name: "default http port stripped",
			in:   "http://example.com:80/page",
			want: "http://example.com/page",
		},
		{
			name: "default https port stripped",
			in:   "https://example.com:443/page",
			want: "https://example.com/page",
		},
		{
			name: "non-default port kept",
			in:   "http://example.com:8080/page",
			want: "http://example.com:8080/page",
		},
		{
			name: "fragment removed",
			in:   "http://example.com/page#section-2",
			want: "http://example.com/page",
		},
		{
			name: "empty path becomes slash",
			in:   "http://example.com",
			want: "http://example.com/",
		},
		{
			name: "query parameters sorted",
			in:   "http://example.com/search?z=1&a=2&m=3",
			want: "http://example.com/search?a=2&m=3&z=1",
		},
		{
			name: "surrounding whitespace trimmed",
			in:   "  http://example.com/page  ",
			want: "http://example.com/page",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestNormalizeEquivalence tests that URLs differing only in fragment
// or default port produce identical keys.
func TestNormalizeEquivalence(t *testing.T) {
	t.Parallel()

	groups := [][]string{
		{
			"http://example.com/a",
			"http://example.com:80/a",
			"http://example.com/a#top",
			"HTTP://EXAMPLE.com/a#bottom",
		},
		{
			"https://example.com/",
			"https://example.com",
			"https://example.com:443/#frag",
		},
	}

	for _, group := range groups {
		first, err := Normalize(group[0])
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", group[0], err)
		}
		for _, raw := range group[1:] {
			key, err := Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", raw, err)
			}
			if key != first {
				t.Errorf("Normalize(%q) = %q, want %q (same as %q)", raw, key, first, group[0])
			}
		}
	}
}

// TestNormalizeDeterministic tests that repeated calls yield the same key.
func TestNormalizeDeterministic(t *testing.T) {
	t.Parallel()

	const raw = "HTTPS://Example.com:443/path?b=2&a=1#x"
	first, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	for n := 0; n < 10; n++ {
		got, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if got != first {
			t.Fatalf("Normalize is not deterministic: %q vs %q", got, first)
		}
	}
}

// TestNormalizeInvalid tests rejection of uncrawlable URLs.
func TestNormalizeInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"empty string", ""},
		{"whitespace only", "   "},
		{"no scheme", "example.com/page"},
		{"javascript scheme", "javascript:void(0)"},
		{"mailto scheme", "mailto:user@example.com"},
		{"data scheme", "data:text/html,hi"},
		{"missing host", "http:///page"},
		{"control character", "http://example.com/\x7f"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Normalize(tt.in); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("Normalize(%q) = %v, want ErrInvalidURL", tt.in, err)
			}
		})
	}
}

// TestHost tests hostname extraction.
func TestHost(t *testing.T) {
	t.Parallel()

	host, err := Host("http://Example.COM:8080/page")
	if err != nil {
		t.Fatalf("Host failed: %v", err)
	}
	if host != "example.com" {
		t.Errorf("Host = %q, want %q", host, "example.com")
	}

	if _, err := Host("http://"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL for missing host, got %v", err)
	}
}
