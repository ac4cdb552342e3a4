package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bankbunk/apple/internal/shared"
)

const defaultSquiglyBase = "https://squigly.link"

// SquiglyResolver resolves through squigly.link's two-step REST protocol:
// create a slug for the source URL, then resolve the slug into per-service
// links.
type SquiglyResolver struct {
	client *http.Client
	base   string
}

// NewSquigly creates a squigly.link resolver. An empty base selects the
// public endpoint.
func NewSquigly(client *http.Client, base string) *SquiglyResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if base == "" {
		base = defaultSquiglyBase
	}
	return &SquiglyResolver{client: client, base: base}
}

func (s *SquiglyResolver) ID() ID { return Squigly }

func (s *SquiglyResolver) headers(req *http.Request) {
	shared.BrowserHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", s.base)
	req.Header.Set("Referer", s.base+"/")
}

func (s *SquiglyResolver) Resolve(ctx context.Context, sourceURL string) Resolution {
	reqBody, _ := json.Marshal(map[string]string{"url": sourceURL})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/create", strings.NewReader(string(reqBody)))
	if err != nil {
		return notFound(Squigly, err)
	}
	s.headers(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return notFound(Squigly, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimited(Squigly)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return notFound(Squigly, fmt.Errorf("create status %d", resp.StatusCode))
	}

	body, ok := readBody(resp)
	if !ok {
		return softLimited(Squigly)
	}

	var created struct {
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		return notFound(Squigly, err)
	}
	if created.Slug == "" {
		return notFound(Squigly, fmt.Errorf("create returned no slug"))
	}

	return s.resolveSlug(ctx, created.Slug)
}

func (s *SquiglyResolver) resolveSlug(ctx context.Context, slug string) Resolution {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/resolve/%s", s.base, slug), nil)
	if err != nil {
		return notFound(Squigly, err)
	}
	s.headers(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return notFound(Squigly, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimited(Squigly)
	}
	if resp.StatusCode != http.StatusOK {
		return notFound(Squigly, fmt.Errorf("resolve status %d", resp.StatusCode))
	}

	body, ok := readBody(resp)
	if !ok {
		return softLimited(Squigly)
	}

	var resolved struct {
		Services map[string]struct {
			URL string `json:"url"`
		} `json:"services"`
	}
	if err := json.Unmarshal([]byte(body), &resolved); err != nil {
		return notFound(Squigly, err)
	}

	if apple, ok := resolved.Services["apple"]; ok && apple.URL != "" {
		return found(Squigly, apple.URL)
	}

	return notFound(Squigly, fmt.Errorf("no apple entry in services map"))
}
