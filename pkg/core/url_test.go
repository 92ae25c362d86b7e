package core

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"strips scheme and www", "https://www.Example.com/Path/", "example.com/Path"},
		{"drops fragment", "http://example.com/a#section", "example.com/a"},
		{"drops tracking params", "https://example.com/a?utm_source=x&id=3&fbclid=y", "example.com/a?id=3"},
		{"keeps custom port", "http://localhost:8080/x", "localhost:8080/x"},
		{"drops default port", "https://example.com:443/x", "example.com/x"},
		{"no scheme", "example.com/page", "example.com/page"},
		{"root", "https://example.com/", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, expected %q", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestNormalizeURLErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "http://"} {
		if _, err := NormalizeURL(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestDomain(t *testing.T) {
	tests := map[string]string{
		"example.com":      "example.com",
		"blog.example.com": "example.com",
		"news.bbc.co.uk":   "bbc.co.uk",
		"localhost":        "localhost",
	}
	for host, expected := range tests {
		if got := Domain(host); got != expected {
			t.Errorf("Domain(%q) = %q, expected %q", host, got, expected)
		}
	}
}

func TestDetectContentType(t *testing.T) {
	tests := map[string]ContentType{
		"https://arxiv.org/pdf/1234.pdf":            ContentTypePDF,
		"https://www.youtube.com/watch?v=abc":       ContentTypeVideo,
		"https://x.com/someone/status/123":          ContentTypeTweet,
		"https://twitter.com/someone":               ContentTypePage,
		"https://lu.ma/gophers":                     ContentTypeEvent,
		"https://www.meetup.com/golang/events/123/": ContentTypeEvent,
		"https://go.dev/doc":                        ContentTypePage,
	}
	for raw, expected := range tests {
		if got := DetectContentType(raw); got != expected {
			t.Errorf("DetectContentType(%q) = %q, expected %q", raw, got, expected)
		}
	}
}

func TestNewPage(t *testing.T) {
	page, err := NewPage("https://news.bbc.co.uk/story?utm_medium=rss", "Story")
	if err != nil {
		t.Fatalf("NewPage returned error: %v", err)
	}
	if page.URL != "news.bbc.co.uk/story" {
		t.Errorf("URL = %q", page.URL)
	}
	if page.Hostname != "news.bbc.co.uk" || page.Domain != "bbc.co.uk" {
		t.Errorf("unexpected host/domain: %q/%q", page.Hostname, page.Domain)
	}
	if page.FullURL != "https://news.bbc.co.uk/story?utm_medium=rss" {
		t.Errorf("FullURL = %q", page.FullURL)
	}
}
