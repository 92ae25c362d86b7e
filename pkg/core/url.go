package core

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
}

var secondLevelSuffixes = map[string]bool{
	"co": true, "com": true, "org": true, "net": true,
	"ac": true, "gov": true, "edu": true,
}

// NormalizeURL reduces a URL to the identifier pages are stored under:
// no scheme, no "www.", no fragment, no tracking parameters, no default port
// and no trailing slash.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("normalizing url: empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalizing url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("normalizing url %q: missing host", raw)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host = net.JoinHostPort(host, port)
	}

	query := u.Query()
	for key := range query {
		if trackingParams[key] || strings.HasPrefix(key, "utm_") {
			query.Del(key)
		}
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	normalized := host + path
	if encoded := query.Encode(); encoded != "" {
		normalized += "?" + encoded
	}
	return normalized, nil
}

// Hostname returns the host part of a normalized URL.
func Hostname(normalized string) string {
	host := normalized
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}

// Domain returns the registrable domain of a hostname, e.g. "bbc.co.uk" for
// "news.bbc.co.uk".
func Domain(hostname string) string {
	labels := strings.Split(hostname, ".")
	if len(labels) <= 2 {
		return hostname
	}
	n := 2
	if len(labels[len(labels)-1]) == 2 && secondLevelSuffixes[labels[len(labels)-2]] {
		n = 3
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

// DetectContentType classifies a raw URL for the search content filters.
func DetectContentType(raw string) ContentType {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ContentTypePage
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.ToLower(u.Path)

	switch {
	case strings.HasSuffix(path, ".pdf"):
		return ContentTypePDF
	case host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be" || host == "vimeo.com":
		return ContentTypeVideo
	case (host == "twitter.com" || host == "x.com") && strings.Contains(path, "/status/"):
		return ContentTypeTweet
	case host == "lu.ma" || strings.HasPrefix(host, "eventbrite.") ||
		(host == "meetup.com" && strings.Contains(path, "/events/")):
		return ContentTypeEvent
	}
	return ContentTypePage
}
