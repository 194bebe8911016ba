package booru

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"boorufetch/pkg/config"
	errs "boorufetch/pkg/errors"
	"boorufetch/pkg/logger"
)

func testClient(apiURL string) *Client {
	cfg := config.DefaultConfig()
	cfg.Booru.APIURL = apiURL
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.Delay = 0
	cfg.Download.Timeout = 5 * time.Second
	return NewClient(cfg, logger.NewNopLogger())
}

func TestFetchPageParsesPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tags") != "vtuber" {
			t.Errorf("expected tags=vtuber, got %q", q.Get("tags"))
		}
		if q.Get("limit") != "200" {
			t.Errorf("expected limit=200, got %q", q.Get("limit"))
		}
		if q.Get("page") != "3" {
			t.Errorf("expected page=3, got %q", q.Get("page"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 42, "file_url": "https://cdn.example.com/42.png",
			 "image_width": 1200, "image_height": 800, "score": 10, "rating": "g",
			 "created_at": "2024-03-01T08:00:00.000-05:00",
			 "tag_string": "1girl blue_eyes", "tag_string_general": "1girl blue_eyes",
			 "tag_string_character": "hatsune_miku", "tag_string_copyright": "vocaloid"}
		]`))
	}))
	defer server.Close()

	posts, err := testClient(server.URL).FetchPage(context.Background(), "vtuber", 200, 3)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}

	post := posts[0]
	if post.ID != 42 {
		t.Errorf("expected id 42, got %d", post.ID)
	}
	if post.Width != 1200 || post.Height != 800 {
		t.Errorf("unexpected dimensions %dx%d", post.Width, post.Height)
	}
	if got := post.Tags(CategoryCharacter); len(got) != 1 || got[0] != "hatsune_miku" {
		t.Errorf("unexpected character tags %v", got)
	}
}

func TestFetchPageSendsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("login") != "alice" || q.Get("api_key") != "secret" {
			t.Errorf("missing credentials in query: %v", q)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	client.login = "alice"
	client.apiKey = "secret"

	if _, err := client.FetchPage(context.Background(), "x", 10, 1); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
}

func TestFetchPageHTTPErrorIsFatal(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "access denied", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchPage(context.Background(), "x", 10, 1)
	if err == nil {
		t.Fatal("expected error")
	}

	var typed *errs.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Type != errs.ErrorTypeAPI {
		t.Errorf("expected api error, got %s", typed.Type)
	}
	if typed.Code != http.StatusForbidden {
		t.Errorf("expected code 403, got %d", typed.Code)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("api errors must not be retried, server saw %d requests", n)
	}
}

func TestFetchPageMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "an array"`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchPage(context.Background(), "x", 10, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Type != errs.ErrorTypeAPI {
		t.Errorf("expected api error for malformed body, got %v", err)
	}
}

func TestDownloadMediaRetriesHTTPErrors(t *testing.T) {
	var requests atomic.Int32
	payload := []byte("media-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	data, err := testClient(server.URL).DownloadMedia(context.Background(), server.URL+"/m.png")
	if err != nil {
		t.Fatalf("DownloadMedia failed: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("unexpected payload %q", data)
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("expected 3 requests, got %d", n)
	}
}

func TestDownloadMediaExhaustion(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).DownloadMedia(context.Background(), server.URL+"/m.png")
	if err == nil {
		t.Fatal("expected error")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Type != errs.ErrorTypeDownloadExhausted {
		t.Errorf("expected download_exhausted, got %s", typed.Type)
	}
	if !strings.Contains(typed.Message, "after 3 attempts") {
		t.Errorf("exhaustion message should carry the attempts made, got %q", typed.Message)
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("expected exactly max attempts (3) requests, got %d", n)
	}
}

func TestDownloadMediaCancellationIsNotExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Booru.APIURL = server.URL
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.Delay = 100 * time.Millisecond
	cfg.Download.Timeout = 5 * time.Second
	client := NewClient(cfg, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.DownloadMedia(ctx, server.URL+"/m.png")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected the cancellation to surface, got %v", err)
	}
	var typed *errs.Error
	if errors.As(err, &typed) && typed.Type == errs.ErrorTypeDownloadExhausted {
		t.Errorf("a cancelled download must not report retry exhaustion: %v", err)
	}
}
