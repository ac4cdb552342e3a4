package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bankbunk/apple/internal/shared"
)

const defaultSonglinkBase = "https://api.song.link"

// SonglinkResolver resolves through the public song.link links API in a
// single round trip: the response body carries the platform-keyed link map
// directly.
type SonglinkResolver struct {
	client *http.Client
	base   string
}

// NewSonglink creates a song.link resolver. An empty base selects the public
// endpoint.
func NewSonglink(client *http.Client, base string) *SonglinkResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if base == "" {
		base = defaultSonglinkBase
	}
	return &SonglinkResolver{client: client, base: base}
}

func (s *SonglinkResolver) ID() ID { return Songlink }

func (s *SonglinkResolver) Resolve(ctx context.Context, sourceURL string) Resolution {
	endpoint := fmt.Sprintf("%s/v1-alpha.1/links?url=%s", s.base, url.QueryEscape(sourceURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return notFound(Songlink, err)
	}
	shared.BrowserHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return notFound(Songlink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimited(Songlink)
	}
	if resp.StatusCode != http.StatusOK {
		return notFound(Songlink, fmt.Errorf("links API status %d", resp.StatusCode))
	}

	body, ok := readBody(resp)
	if !ok {
		return softLimited(Songlink)
	}

	var links struct {
		LinksByPlatform map[string]struct {
			URL string `json:"url"`
		} `json:"linksByPlatform"`
	}
	if err := json.Unmarshal([]byte(body), &links); err != nil {
		return notFound(Songlink, err)
	}

	if link, ok := links.LinksByPlatform["appleMusic"]; ok && link.URL != "" {
		return found(Songlink, link.URL)
	}

	return notFound(Songlink, fmt.Errorf("no appleMusic entry in link map"))
}
