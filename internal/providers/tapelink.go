package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bankbunk/apple/internal/shared"
)

const defaultTapelinkBase = "https://www.tapelink.io"

// TapelinkResolver resolves by generating a shareable tapelink.io page for
// the track and scraping that page's embedded payload.
type TapelinkResolver struct {
	client *http.Client
	base   string
}

// NewTapelink creates a tapelink.io resolver. An empty base selects the
// public endpoint.
func NewTapelink(client *http.Client, base string) *TapelinkResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if base == "" {
		base = defaultTapelinkBase
	}
	return &TapelinkResolver{client: client, base: base}
}

func (t *TapelinkResolver) ID() ID { return Tapelink }

func (t *TapelinkResolver) headers(req *http.Request) {
	shared.BrowserHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", t.base)
	req.Header.Set("Referer", t.base+"/")
}

// Resolve POSTs the source URL to the generate-link endpoint, then fetches
// the resulting share page and reads the platform map from its payload.
func (t *TapelinkResolver) Resolve(ctx context.Context, sourceURL string) Resolution {
	reqBody, _ := json.Marshal(map[string]string{"url": sourceURL})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/api/generate-link", strings.NewReader(string(reqBody)))
	if err != nil {
		return notFound(Tapelink, err)
	}
	t.headers(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return notFound(Tapelink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimited(Tapelink)
	}
	if resp.StatusCode != http.StatusOK {
		return notFound(Tapelink, fmt.Errorf("generate-link status %d", resp.StatusCode))
	}

	body, ok := readBody(resp)
	if !ok {
		return softLimited(Tapelink)
	}

	var generated struct {
		Success       bool   `json:"success"`
		ShareableLink string `json:"shareableLink"`
	}
	if err := json.Unmarshal([]byte(body), &generated); err != nil {
		return notFound(Tapelink, err)
	}
	if !generated.Success || generated.ShareableLink == "" {
		return notFound(Tapelink, fmt.Errorf("generate-link returned no share link"))
	}

	shareURL := generated.ShareableLink
	if !strings.HasPrefix(shareURL, "http") {
		shareURL = "https://" + shareURL
	}

	return t.scrapeShare(ctx, shareURL)
}

func (t *TapelinkResolver) scrapeShare(ctx context.Context, shareURL string) Resolution {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return notFound(Tapelink, err)
	}
	t.headers(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return notFound(Tapelink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimited(Tapelink)
	}
	if resp.StatusCode != http.StatusOK {
		return notFound(Tapelink, fmt.Errorf("share page status %d", resp.StatusCode))
	}

	html, ok := readBody(resp)
	if !ok {
		return softLimited(Tapelink)
	}

	payload, ok := nextData(html)
	if !ok {
		return notFound(Tapelink, fmt.Errorf("share page carried no data payload"))
	}

	var page struct {
		Props struct {
			PageProps struct {
				InitialSongData struct {
					Platforms map[string]string `json:"platforms"`
				} `json:"initialSongData"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(payload), &page); err != nil {
		return notFound(Tapelink, err)
	}

	if appleURL := page.Props.PageProps.InitialSongData.Platforms["apple_music"]; appleURL != "" {
		return found(Tapelink, appleURL)
	}

	return notFound(Tapelink, fmt.Errorf("no apple_music entry in platform map"))
}
