package analyses

import (
	"errors"
	"testing"
)

func TestNewRequestRequiresSource(t *testing.T) {
	for _, tc := range []struct{ url, b64 string }{
		{"", ""},
		{"  ", " \n\t "},
		{"", "data:application/pdf;base64,"},
	} {
		if _, err := NewRequest(tc.url, tc.b64, "", "", ""); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%q/%q: expected ErrInvalidRequest, got %v", tc.url, tc.b64, err)
		}
	}
}

func TestNewRequestCleansBase64(t *testing.T) {
	req, err := NewRequest("", "data:application/pdf;base64,QUJD\nREVG  R0hJ\r\n", "", "", "")
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if req.Source.Base64 != "QUJDREVGR0hJ" || req.Source.URL != "" {
		t.Fatalf("unexpected source %+v", req.Source)
	}
}

func TestNewRequestPrefersURL(t *testing.T) {
	req, err := NewRequest(" https://files.example/a.pdf ", "QUJD", "", "", " 1-2 ")
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if req.Source.URL != "https://files.example/a.pdf" || req.Source.Base64 != "" {
		t.Fatalf("unexpected source %+v", req.Source)
	}
	if req.Pages != "1-2" {
		t.Fatalf("expected pages 1-2, got %q", req.Pages)
	}
}

func TestParseModel(t *testing.T) {
	cases := map[string]ModelID{
		"read":            ModelRead,
		"READ":            ModelRead,
		"prebuilt-read":   ModelRead,
		"layout":          ModelLayout,
		"prebuilt-layout": ModelLayout,
		"":                ModelLayout,
		"invoice":         ModelLayout,
	}
	for in, want := range cases {
		if got := ParseModel(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
	if ModelRead.RemoteID() != "prebuilt-read" || ModelLayout.RemoteID() != "prebuilt-layout" {
		t.Fatalf("unexpected remote ids %q %q", ModelRead.RemoteID(), ModelLayout.RemoteID())
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"text":     FormatText,
		" TEXT ":   FormatText,
		"markdown": FormatMarkdown,
		"html":     FormatMarkdown,
		"":         FormatMarkdown,
	}
	for in, want := range cases {
		if got := ParseFormat(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateSucceeded, StateFailed, StateCanceled, StateNotFound, StateTimedOut} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateSubmitted, StateRunning} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
