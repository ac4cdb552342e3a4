package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bankbunk/apple/internal/shared"
)

const (
	defaultOdesliAPIBase  = "https://api.odesli.co"
	defaultOdesliPageBase = "https://song.link"
)

// OdesliResolver resolves via the Odesli lookup API, falling back to scraping
// the song.link landing page when the API response does not embed the Apple
// Music link directly.
type OdesliResolver struct {
	client   *http.Client
	apiBase  string
	pageBase string
}

// NewOdesli creates an Odesli resolver. Empty base URLs select the public
// endpoints.
func NewOdesli(client *http.Client, apiBase, pageBase string) *OdesliResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if apiBase == "" {
		apiBase = defaultOdesliAPIBase
	}
	if pageBase == "" {
		pageBase = defaultOdesliPageBase
	}
	return &OdesliResolver{client: client, apiBase: apiBase, pageBase: pageBase}
}

func (o *OdesliResolver) ID() ID { return Odesli }

// Resolve looks the track up via GET /resolve. The API frequently returns
// the platform link map directly (fast path); otherwise the response yields
// an entity id + type from which the landing page URL is constructed and
// scraped.
func (o *OdesliResolver) Resolve(ctx context.Context, sourceURL string) Resolution {
	endpoint := fmt.Sprintf("%s/resolve?url=%s", o.apiBase, url.QueryEscape(sourceURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return notFound(Odesli, err)
	}
	shared.BrowserHeaders(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return notFound(Odesli, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimited(Odesli)
	}
	if resp.StatusCode != http.StatusOK {
		return notFound(Odesli, fmt.Errorf("resolve API status %d", resp.StatusCode))
	}

	body, ok := readBody(resp)
	if !ok {
		return softLimited(Odesli)
	}

	var lookup struct {
		ID              string `json:"id"`
		Type            string `json:"type"`
		LinksByPlatform map[string]struct {
			URL string `json:"url"`
		} `json:"linksByPlatform"`
	}
	if err := json.Unmarshal([]byte(body), &lookup); err != nil {
		return notFound(Odesli, err)
	}

	if link, ok := lookup.LinksByPlatform["appleMusic"]; ok && link.URL != "" {
		return found(Odesli, link.URL)
	}

	if lookup.ID == "" || lookup.Type == "" {
		return notFound(Odesli, fmt.Errorf("resolve API returned no entity"))
	}

	return o.scrapePage(ctx, lookup.ID, lookup.Type)
}

// scrapePage fetches the song.link landing page for the entity and searches
// its embedded payload for the Apple Music link.
func (o *OdesliResolver) scrapePage(ctx context.Context, entityID, entityType string) Resolution {
	slug := "a"
	if entityType == "song" {
		slug = "s"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", o.pageBase, slug, entityID), nil)
	if err != nil {
		return notFound(Odesli, err)
	}
	shared.BrowserHeaders(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return notFound(Odesli, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimited(Odesli)
	}
	if resp.StatusCode != http.StatusOK {
		return notFound(Odesli, fmt.Errorf("landing page status %d", resp.StatusCode))
	}

	html, ok := readBody(resp)
	if !ok {
		return softLimited(Odesli)
	}

	payload, ok := nextData(html)
	if !ok {
		return notFound(Odesli, fmt.Errorf("landing page carried no data payload"))
	}

	var page struct {
		Props struct {
			PageProps struct {
				PageData struct {
					Sections []struct {
						Links []struct {
							Platform string `json:"platform"`
							URL      string `json:"url"`
						} `json:"links"`
					} `json:"sections"`
				} `json:"pageData"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(payload), &page); err != nil {
		return notFound(Odesli, err)
	}

	for _, section := range page.Props.PageProps.PageData.Sections {
		for _, link := range section.Links {
			if link.Platform == "appleMusic" && link.URL != "" {
				return found(Odesli, link.URL)
			}
		}
	}

	return notFound(Odesli, fmt.Errorf("no appleMusic link in page sections"))
}
