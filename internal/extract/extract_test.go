package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestCanonicalURL(t *testing.T) {
	e := New(nil, nil, "us")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "geo host rewritten",
			in:   "https://geo.music.apple.com/us/album/example/123",
			want: "https://music.apple.com/us/album/example/123",
		},
		{
			name: "locale replaced with storefront",
			in:   "https://music.apple.com/de/album/example/123",
			want: "https://music.apple.com/us/album/example/123",
		},
		{
			name: "query stripped except track selector",
			in:   "https://music.apple.com/us/album/example/123?i=456&at=affiliate&ct=campaign",
			want: "https://music.apple.com/us/album/example/123?i=456",
		},
		{
			name: "all superficial differences collapse together",
			in:   "https://geo.music.apple.com/gb/album/example/123?at=x&i=456",
			want: "https://music.apple.com/us/album/example/123?i=456",
		},
		{
			name: "unparseable URL passes through",
			in:   "://not-a-url",
			want: "://not-a-url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.CanonicalURL(tt.in); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		once := e.CanonicalURL("https://geo.music.apple.com/fr/song/x/9?i=1&foo=bar")
		twice := e.CanonicalURL(once)
		if once != twice {
			t.Errorf("canonicalization not idempotent: %q != %q", once, twice)
		}
	})
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2020", "2020-12-31"},
		{"2020-05", "2020-05-28"},
		{"2020-05-14", "2020-05-14"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeDate(tt.in); got != tt.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanGenres(t *testing.T) {
	e := New(nil, []string{"Singer/Songwriter"}, "us")

	tests := []struct {
		name string
		in   []any
		want []string
	}{
		{
			name: "compound genres split on slash",
			in:   []any{"Pop/Dance"},
			want: []string{"Dance", "Pop"},
		},
		{
			name: "keep-whole names survive verbatim",
			in:   []any{"Singer/Songwriter", "Pop"},
			want: []string{"Pop", "Singer/Songwriter"},
		},
		{
			name: "umbrella tag dropped case-insensitively",
			in:   []any{"Music", "music", "Rock"},
			want: []string{"Rock"},
		},
		{
			name: "duplicates collapse",
			in:   []any{"Pop", "Pop/Rock", "Rock"},
			want: []string{"Pop", "Rock"},
		},
		{
			name: "non-string values ignored",
			in:   []any{42.0, "Jazz", nil},
			want: []string{"Jazz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.cleanGenres(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("cleanGenres(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	e := New(nil, []string{"Singer/Songwriter"}, "us")
	canonical := "https://music.apple.com/us/album/example/123?i=456"

	t.Run("first block with genres wins", func(t *testing.T) {
		html := `<html><head>
<script type="application/ld+json">{"@type":"Organization","name":"Apple"}</script>
<script type="application/ld+json">{"@type":"MusicRecording","datePublished":"2018","audio":{"genre":["Pop/Dance","Music"]}}</script>
</head></html>`

		meta := e.Parse(html, canonical)
		if meta == nil {
			t.Fatal("expected metadata, got nil")
		}
		if meta.PublishedDate != "2018-12-31" {
			t.Errorf("PublishedDate = %q, want %q", meta.PublishedDate, "2018-12-31")
		}
		if want := []string{"Dance", "Pop"}; !reflect.DeepEqual(meta.Genres, want) {
			t.Errorf("Genres = %v, want %v", meta.Genres, want)
		}
		if meta.URL != canonical {
			t.Errorf("URL = %q, want %q", meta.URL, canonical)
		}
	})

	t.Run("date from nested album object", func(t *testing.T) {
		html := `<script type="application/ld+json">{"genre":["Rock"],"inAlbum":{"datePublished":"2001-07-03"}}</script>`

		meta := e.Parse(html, canonical)
		if meta == nil {
			t.Fatal("expected metadata, got nil")
		}
		if meta.PublishedDate != "2001-07-03" {
			t.Errorf("PublishedDate = %q, want %q", meta.PublishedDate, "2001-07-03")
		}
	})

	t.Run("no date leaves field empty", func(t *testing.T) {
		html := `<script type="application/ld+json">{"genre":"Jazz"}</script>`

		meta := e.Parse(html, canonical)
		if meta == nil {
			t.Fatal("expected metadata, got nil")
		}
		if meta.PublishedDate != "" {
			t.Errorf("PublishedDate = %q, want empty", meta.PublishedDate)
		}
		if meta.SortDate() != "9999-99-99" {
			t.Errorf("SortDate() = %q, want sentinel", meta.SortDate())
		}
	})

	t.Run("malformed block skipped", func(t *testing.T) {
		html := `<script type="application/ld+json">{not json</script>
<script type="application/ld+json">{"genre":["Pop"]}</script>`

		meta := e.Parse(html, canonical)
		if meta == nil {
			t.Fatal("expected metadata from second block, got nil")
		}
	})

	t.Run("only music genres yields nil", func(t *testing.T) {
		html := `<script type="application/ld+json">{"genre":["Music"]}</script>`

		if meta := e.Parse(html, canonical); meta != nil {
			t.Errorf("expected nil, got %+v", meta)
		}
	})

	t.Run("no structured data yields nil", func(t *testing.T) {
		if meta := e.Parse("<html><body>nothing here</body></html>", canonical); meta != nil {
			t.Errorf("expected nil, got %+v", meta)
		}
	})

	t.Run("identical page content yields identical metadata", func(t *testing.T) {
		// Many genre values at several depths, so an order-dependent walk
		// would have plenty of chances to diverge between runs.
		html := `<script type="application/ld+json">{"datePublished":"2018",` +
			`"genre":["Pop/Dance","Electronic"],` +
			`"audio":{"genre":["House","Music"]},` +
			`"inAlbum":{"genre":"Rock/Indie","byArtist":{"genre":["Singer/Songwriter"]}}}</script>`

		first := e.Parse(html, canonical)
		if first == nil {
			t.Fatal("expected metadata, got nil")
		}
		for i := 0; i < 10; i++ {
			again := e.Parse(html, canonical)
			if again == nil {
				t.Fatal("expected metadata on repeat parse, got nil")
			}
			if !reflect.DeepEqual(first, again) {
				t.Fatalf("parse %d diverged: %+v != %+v", i, again, first)
			}
		}
	})
}

func TestFetch(t *testing.T) {
	page := `<html><script type="application/ld+json">{"genre":["Electronic"],"datePublished":"2019-02"}</script></html>`

	t.Run("successful fetch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") == "" {
				t.Error("expected browser User-Agent header")
			}
			w.Write([]byte(page))
		}))
		defer server.Close()

		e := New(server.Client(), nil, "us")
		meta := e.Fetch(context.Background(), server.URL+"/album/x")
		if meta == nil {
			t.Fatal("expected metadata, got nil")
		}
		if meta.PublishedDate != "2019-02-28" {
			t.Errorf("PublishedDate = %q, want %q", meta.PublishedDate, "2019-02-28")
		}
	})

	t.Run("non-200 yields nil", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		e := New(server.Client(), nil, "us")
		if meta := e.Fetch(context.Background(), server.URL); meta != nil {
			t.Errorf("expected nil, got %+v", meta)
		}
	})

	t.Run("unreachable server yields nil", func(t *testing.T) {
		e := New(&http.Client{}, nil, "us")
		if meta := e.Fetch(context.Background(), "http://127.0.0.1:1/nothing"); meta != nil {
			t.Errorf("expected nil, got %+v", meta)
		}
	})
}
