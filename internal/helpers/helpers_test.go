package helpers

import "testing"

func TestCanonicalURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cleans path", "https://Example.com/news/../tech/latest", "https://example.com/tech/latest"},
		{"drops default port and tracking params", "http://news.example.com:80/article?id=123&utm_source=rss#section", "http://news.example.com/article?id=123"},
		{"sorts query and keeps trailing slash", "https://example.com/path/?b=2&a=1&fbclid=xyz", "https://example.com/path/?a=1&b=2"},
		{"keeps custom port", "https://example.com:8443/feed", "https://example.com:8443/feed"},
		{"collapses repeated slashes", "https://example.com//a//b///c", "https://example.com/a/b/c"},
		{"root", "https://example.com", "https://example.com/"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalURL(tt.in)
			if err != nil {
				t.Fatalf("CanonicalURL(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalURLRejects(t *testing.T) {
	for _, raw := range []string{"", "/relative", "ftp://example.com/x", "mailto:a@example.com"} {
		if _, err := CanonicalURL(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	if got := URLKey(" /relative "); got != "/relative" {
		t.Fatalf("URLKey fallback = %q", got)
	}
}

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		`<p>Hello <strong>world</strong><script>alert('x')</script></p>`: "Hello world",
		"Line one<br/>Line two":                      "Line one Line two",
		"Fish &amp; chips &quot;daily&quot;":         `Fish & chips "daily"`,
		"  spaced\n\n out\ttext ":                    "spaced out text",
		`<a href="javascript:alert(1)">click</a> me`: "click me",
		"": "",
	}
	for in, want := range cases {
		if got := PlainText(in); got != want {
			t.Fatalf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
}
