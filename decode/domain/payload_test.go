package domain

import (
	"encoding/base64"
	"testing"
)

func TestDecodePayload_RoundTrip(t *testing.T) {
	urls := []string{
		"https://cdn.example/video.mp4",
		"https://media.example.com/path/to/stream.m3u8?quality=720",
		"http://host:8080/v",
	}

	for _, u := range urls {
		encoded := base64.StdEncoding.EncodeToString([]byte(u))
		got, err := DecodePayload(encoded)
		if err != nil {
			t.Fatalf("DecodePayload(%q): unexpected error: %v", u, err)
		}
		if got != u {
			t.Fatalf("expected %q, got %q", u, got)
		}
	}
}

func TestDecodePayload_RejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"not base64":       "%%%not-base64%%%",
		"bad padding":      "aHR0cHM6Ly9leGFtcGxlLmNvbQ", // falta o padding
		"not a URL":        base64.StdEncoding.EncodeToString([]byte("just some text")),
		"relative URL":     base64.StdEncoding.EncodeToString([]byte("/video.mp4")),
		"missing host":     base64.StdEncoding.EncodeToString([]byte("https://")),
		"scheme only text": base64.StdEncoding.EncodeToString([]byte("https:video")),
	}

	for name, in := range cases {
		if _, err := DecodePayload(in); !IsMalformedPayload(err) {
			t.Fatalf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
	}
}

func TestBuildPlayableURL_AppendsCredential(t *testing.T) {
	got, err := BuildPlayableURL("https://cdn.example/video.mp4", "token", "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://cdn.example/video.mp4?token=abc123" {
		t.Fatalf("unexpected playable URL: %q", got)
	}
}

func TestBuildPlayableURL_KeepsExistingQuery(t *testing.T) {
	got, err := BuildPlayableURL("https://cdn.example/v.mp4?quality=720", "token", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://cdn.example/v.mp4?quality=720&token=abc" {
		t.Fatalf("unexpected playable URL: %q", got)
	}
}

func TestBuildPlayableURL_EmptyParamReturnsURLUnchanged(t *testing.T) {
	got, err := BuildPlayableURL("https://cdn.example/video.mp4", "", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://cdn.example/video.mp4" {
		t.Fatalf("unexpected URL: %q", got)
	}
}

func TestBuildPlayableURL_RejectsRelativeURL(t *testing.T) {
	if _, err := BuildPlayableURL("/video.mp4", "token", "abc"); !IsMalformedPayload(err) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}
