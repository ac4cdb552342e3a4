package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bankbunk/apple/internal/models"
	"github.com/bankbunk/apple/internal/shared"
)

func TestFetchBatch(t *testing.T) {
	t.Run("posts limit and decodes tracks", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/genres/find-missing-apple" {
				t.Errorf("path = %s, want /genres/find-missing-apple", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}

			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["limit"] != float64(250) {
				t.Errorf("limit = %v, want 250", req["limit"])
			}
			if _, ok := req["total_workers"]; ok {
				t.Error("unexpected shard fields without sharding")
			}

			json.NewEncoder(w).Encode(map[string]any{
				"tracks": []map[string]string{
					{"id": "t1", "isrc": "USUM71703861"},
					{"id": "t2", "isrc": ""},
				},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		tracks, err := client.FetchBatch(context.Background(), 250)
		if err != nil {
			t.Fatalf("FetchBatch() error = %v", err)
		}

		if len(tracks) != 2 {
			t.Fatalf("got %d tracks, want 2", len(tracks))
		}
		if tracks[0].ID != "t1" || tracks[0].ISRC != "USUM71703861" {
			t.Errorf("first track = %+v", tracks[0])
		}
	})

	t.Run("shard fields included when configured", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["worker_index"] != float64(2) || req["total_workers"] != float64(4) {
				t.Errorf("shard fields = %v/%v, want 2/4", req["worker_index"], req["total_workers"])
			}
			json.NewEncoder(w).Encode(map[string]any{"tracks": []any{}})
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		client.SetShard(2, 4)
		if _, err := client.FetchBatch(context.Background(), 50); err != nil {
			t.Fatalf("FetchBatch() error = %v", err)
		}
	})

	t.Run("worker index zero still sent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			index, ok := req["worker_index"]
			if !ok {
				t.Error("worker_index missing for the first shard")
			}
			if index != float64(0) || req["total_workers"] != float64(4) {
				t.Errorf("shard fields = %v/%v, want 0/4", index, req["total_workers"])
			}
			json.NewEncoder(w).Encode(map[string]any{"tracks": []any{}})
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		client.SetShard(0, 4)
		if _, err := client.FetchBatch(context.Background(), 50); err != nil {
			t.Fatalf("FetchBatch() error = %v", err)
		}
	})

	t.Run("non-200 yields queue error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		if _, err := client.FetchBatch(context.Background(), 50); !errors.Is(err, shared.ErrQueueRequest) {
			t.Errorf("error = %v, want ErrQueueRequest", err)
		}
	})

	t.Run("missing base URL", func(t *testing.T) {
		client := NewClient("", nil)
		if _, err := client.FetchBatch(context.Background(), 50); !errors.Is(err, shared.ErrMissingQueue) {
			t.Errorf("error = %v, want ErrMissingQueue", err)
		}
	})
}

func TestSubmit(t *testing.T) {
	updates := []models.TrackUpdate{
		{ISRC: "USUM71703861", TrackID: "t1", Genres: `["Pop"]`, UpdatedAt: 1700000000},
		{ISRC: "", TrackID: "t2", Genres: "[]", UpdatedAt: 1700000000},
	}

	t.Run("posts the update batch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/genres" {
				t.Errorf("path = %s, want /genres", r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var got []map[string]any
			json.NewDecoder(r.Body).Decode(&got)
			if len(got) != 2 {
				t.Fatalf("got %d updates, want 2", len(got))
			}
			if got[0]["track_id"] != "t1" || got[0]["apple_music_genres"] != `["Pop"]` {
				t.Errorf("first update = %v", got[0])
			}
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		if err := client.Submit(context.Background(), updates); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		if err := client.Submit(context.Background(), nil); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if called {
			t.Error("expected no request for an empty batch")
		}
	})

	t.Run("rejection surfaces as queue error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		if err := client.Submit(context.Background(), updates); !errors.Is(err, shared.ErrQueueRequest) {
			t.Errorf("error = %v, want ErrQueueRequest", err)
		}
	})
}
