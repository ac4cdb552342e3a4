// package models defines the data model for the genre enrichment job
package models

import "encoding/json"

// DateSentinel sorts after every real YYYY-MM-DD date.
//
// A TrackMetadata with no publication date compares as maximal so that dated
// results always win the earliest-date merge.
const DateSentinel = "9999-99-99"

// TrackItem is one unit of work supplied by the external work queue.
type TrackItem struct {
	ID   string `json:"id"`   // Spotify track identifier
	ISRC string `json:"isrc"` // International Standard Recording Code
}

// SpotifyURL returns the canonical open.spotify.com URL for the track.
func (t TrackItem) SpotifyURL() string {
	return "https://open.spotify.com/track/" + t.ID
}

// ResolvedLink is the output of a successful provider resolution.
type ResolvedLink struct {
	Provider string // Provider that produced the link
	URL      string // Apple Music URL
}

// TrackMetadata is the result of scraping one Apple Music page.
type TrackMetadata struct {
	URL           string   // Canonical page URL the metadata came from
	PublishedDate string   // YYYY-MM-DD, empty when the page carried no date
	Genres        []string // Cleaned genre names, always non-empty
}

// SortDate returns the publication date used for merge ordering, substituting
// [DateSentinel] when the page carried no date.
func (m TrackMetadata) SortDate() string {
	if m.PublishedDate == "" {
		return DateSentinel
	}
	return m.PublishedDate
}

// TrackUpdate is the persisted outcome for one TrackItem. Exactly one is
// produced per item consumed, with Genres "[]" when nothing was found.
type TrackUpdate struct {
	ISRC      string `json:"isrc"`
	TrackID   string `json:"track_id"`
	Genres    string `json:"apple_music_genres"` // JSON-encoded list of genre names
	UpdatedAt int64  `json:"updated_at"`         // Unix seconds
}

// EncodeGenres marshals a genre list into the wire form carried by
// [TrackUpdate.Genres]. A nil or empty list encodes as "[]".
func EncodeGenres(genres []string) string {
	if len(genres) == 0 {
		return "[]"
	}
	data, err := json.Marshal(genres)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeGenres reverses [EncodeGenres]. Malformed input decodes as empty.
func DecodeGenres(raw string) []string {
	var genres []string
	if err := json.Unmarshal([]byte(raw), &genres); err != nil {
		return nil
	}
	return genres
}

// CachedResolution is a locally persisted resolution, keyed by Spotify track
// ID, used to skip provider calls for tracks already resolved.
type CachedResolution struct {
	TrackID       string
	ISRC          string
	URL           string
	PublishedDate string
	Genres        []string // empty slice records a definitive "not found"
	UpdatedAt     int64
}
