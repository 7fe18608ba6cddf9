package textutil

import "testing"

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		"":                                  "",
		"  Web design\n\tstudio ":           "Web design studio",
		"<b>Pricing</b> plans":              "Pricing plans",
		`<script>alert(1)</script>Services`: "Services",
		"Q&A <i>for</i> clients":            "Q&A for clients",
		"Thiết kế <em>website</em>":         "Thiết kế website",
	}
	for input, expected := range cases {
		if got := PlainText(input); got != expected {
			t.Fatalf("PlainText(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Thiết kế website", 8); got != "Thiết kế" {
		t.Fatalf("expected rune-aware truncation, got %q", got)
	}
	if got := Truncate("short", 0); got != "short" {
		t.Fatalf("expected unchanged value, got %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("expected unchanged value, got %q", got)
	}
}
