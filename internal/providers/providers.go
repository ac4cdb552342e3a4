// package providers implements link aggregator resolvers.
//
// Each resolver converts a Spotify track URL into an Apple Music URL using
// one third-party service's protocol. All of these services are unstable,
// undocumented surfaces: resolvers treat anything other than an explicit
// rate-limit signal as "no mapping" so that one broken provider never blocks
// the others.
package providers

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// ID identifies one aggregator service.
type ID string

const (
	Odesli   ID = "odesli"
	Songlink ID = "songlink"
	Tapelink ID = "tapelink"
	Squigly  ID = "squigly"
)

// Status classifies the outcome of one resolution attempt.
type Status int

const (
	// StatusFound carries an Apple Music URL.
	StatusFound Status = iota
	// StatusNotFound means the provider has no mapping for this track, or
	// failed in a way that is terminal for this attempt (transport error,
	// malformed response). Never retried.
	StatusNotFound
	// StatusRateLimited is a hard HTTP 429. Triggers cooldown and retry.
	StatusRateLimited
	// StatusSoftLimited is a success status with an anomalous empty body,
	// indistinguishable from active throttling. Handled like a 429 but
	// logged as its own kind.
	StatusSoftLimited
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusRateLimited:
		return "rate_limited"
	case StatusSoftLimited:
		return "soft_limited"
	default:
		return ""
	}
}

// Resolution is the tagged result of one resolver call. Rate-limit outcomes
// are values here, not errors: every control path is explicit at call sites.
type Resolution struct {
	Provider ID
	Status   Status
	URL      string
	Err      error // diagnostic cause, never escalated past this boundary
}

// Limited reports whether the resolution carried either rate-limit kind.
func (r Resolution) Limited() bool {
	return r.Status == StatusRateLimited || r.Status == StatusSoftLimited
}

func found(id ID, url string) Resolution {
	return Resolution{Provider: id, Status: StatusFound, URL: url}
}

func notFound(id ID, err error) Resolution {
	return Resolution{Provider: id, Status: StatusNotFound, Err: err}
}

func rateLimited(id ID) Resolution {
	return Resolution{Provider: id, Status: StatusRateLimited}
}

func softLimited(id ID) Resolution {
	return Resolution{Provider: id, Status: StatusSoftLimited}
}

// Resolver converts a source-platform track URL into an Apple Music URL.
type Resolver interface {
	ID() ID
	Resolve(ctx context.Context, sourceURL string) Resolution
}

var nextDataPattern = regexp.MustCompile(`(?s)<script[^>]*id="__NEXT_DATA__"[^>]*>(.*?)</script>`)

// nextData extracts the embedded page-initialization JSON payload that
// Next.js-rendered aggregator pages carry.
func nextData(html string) (string, bool) {
	match := nextDataPattern.FindStringSubmatch(html)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// readBody drains a response body. ok is false when the body is empty after
// trimming, the soft rate-limit signature.
func readBody(resp *http.Response) (body string, ok bool) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}
	body = strings.TrimSpace(string(data))
	return body, body != ""
}
