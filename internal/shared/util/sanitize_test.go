package util

import "testing"

func TestSanitizePrefix(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"../secret":      "secret/",
		"tenant-a/docs/": "tenant-a/docs/",
		"//a b$c//":      "abc/",
		"uploads_2026":   "uploads_2026/",
		"..":             "",
		"x/../y":         "x//y/",
	}
	for in, want := range cases {
		if got := SanitizePrefix(in); got != want {
			t.Fatalf("SanitizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtensionOf(t *testing.T) {
	cases := map[string]string{
		"report.pdf":     "pdf",
		"Report.PDF":     "pdf",
		"archive.tar.gz": "gz",
		"README":         "bin",
		"":               "bin",
		"trailing.":      "",
	}
	for in, want := range cases {
		if got := ExtensionOf(in); got != want {
			t.Fatalf("ExtensionOf(%q) = %q, want %q", in, got, want)
		}
	}
}
