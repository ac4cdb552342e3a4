// package extract scrapes publication dates and genre names from Apple Music
// pages.
//
// Apple renders track and album pages with one or more embedded
// application/ld+json blocks. Blocks are scanned in page order and the first
// one yielding a usable (non-empty) genre set wins. Extraction failures are
// local: a page that cannot be fetched or parsed yields nil, never an error.
package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/bankbunk/apple/internal/models"
	"github.com/bankbunk/apple/internal/shared"
)

const geoHost = "geo.music.apple.com"
const canonicalHost = "music.apple.com"

var (
	jsonLDPattern = regexp.MustCompile(`(?s)<script[^>]*type="application/ld\+json"[^>]*>(.*?)</script>`)
	localePattern = regexp.MustCompile(`^/[a-z]{2}/`)
)

// Extractor fetches Apple Music pages and extracts structured metadata.
type Extractor struct {
	client     *http.Client
	keepWhole  map[string]bool
	storefront string
}

// New creates an Extractor. keepWhole lists genre names (lower-cased) that
// contain a "/" as part of the name and must not be split. storefront is the
// locale segment canonical URLs are rewritten to, defaulting to "us".
func New(client *http.Client, keepWhole []string, storefront string) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	if storefront == "" {
		storefront = "us"
	}

	whole := make(map[string]bool, len(keepWhole))
	for _, g := range keepWhole {
		whole[strings.ToLower(g)] = true
	}

	return &Extractor{client: client, keepWhole: whole, storefront: storefront}
}

// CanonicalURL collapses superficially different Apple Music URLs to one
// form: the geo redirect host is rewritten to the canonical host, any
// two-letter locale path segment is replaced with the configured storefront,
// and all query parameters except the "i" track selector are dropped.
func (e *Extractor) CanonicalURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if parsed.Host == geoHost {
		parsed.Host = canonicalHost
	}

	parsed.Path = localePattern.ReplaceAllString(parsed.Path, "/"+e.storefront+"/")

	query := url.Values{}
	if track := parsed.Query().Get("i"); track != "" {
		query.Set("i", track)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

// Fetch retrieves an Apple Music page and returns its metadata, or nil when
// the page is unreachable or no structured-data block yields usable genres.
func (e *Extractor) Fetch(ctx context.Context, pageURL string) *models.TrackMetadata {
	canonical := e.CanonicalURL(pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, canonical, nil)
	if err != nil {
		return nil
	}
	shared.BrowserHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	return e.Parse(string(body), canonical)
}

// Parse scans page HTML for structured-data blocks and returns metadata from
// the first block with a non-empty genre set.
func (e *Extractor) Parse(html, canonical string) *models.TrackMetadata {
	for _, match := range jsonLDPattern.FindAllStringSubmatch(html, -1) {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &doc); err != nil {
			continue
		}

		genres := e.cleanGenres(FindKey(doc, "genre"))
		if len(genres) == 0 {
			continue
		}

		return &models.TrackMetadata{
			URL:           canonical,
			PublishedDate: normalizeDate(publishedDate(doc)),
			Genres:        genres,
		}
	}

	return nil
}

// publishedDate checks the top-level date field, then the nested audio and
// album objects. First hit wins.
func publishedDate(doc any) string {
	root, ok := doc.(map[string]any)
	if !ok {
		return ""
	}

	if date, ok := root["datePublished"].(string); ok && date != "" {
		return date
	}
	for _, nested := range []string{"audio", "inAlbum"} {
		if sub, ok := root[nested].(map[string]any); ok {
			if date, ok := sub["datePublished"].(string); ok && date != "" {
				return date
			}
		}
	}

	return ""
}

// normalizeDate expands partial dates toward the end of their period so that
// a coarse date never spuriously sorts earlier than a precise one: a bare
// year becomes YYYY-12-31 and a year-month becomes YYYY-MM-28.
func normalizeDate(date string) string {
	switch len(date) {
	case 4:
		return date + "-12-31"
	case 7:
		return date + "-28"
	default:
		return date
	}
}

// cleanGenres post-processes raw genre values: keep-whole names survive
// verbatim, everything else splits on "/", and the umbrella tag "music" is
// dropped case-insensitively. The result is deduplicated and sorted.
func (e *Extractor) cleanGenres(raw []any) []string {
	seen := map[string]bool{}
	var genres []string

	add := func(g string) {
		if strings.EqualFold(g, "music") || seen[g] {
			return
		}
		seen[g] = true
		genres = append(genres, g)
	}

	for _, value := range raw {
		genre, ok := value.(string)
		if !ok {
			continue
		}

		if e.keepWhole[strings.ToLower(genre)] {
			add(genre)
			continue
		}

		for _, part := range strings.Split(genre, "/") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				add(trimmed)
			}
		}
	}

	sort.Strings(genres)
	return genres
}
