package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"harvest_monitor/internal/models"
)

var testImage = models.EncodedImage{MimeType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nfake")}

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model", Timeout: timeout})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.httpClient = srv.Client()
	return client
}

func completion(content any) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
	return string(body)
}

func TestAnalyzeSendsImageAndParsesReply(t *testing.T) {
	var gotAuth, gotPath, gotModel, gotImageURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		for _, m := range req.Messages {
			for _, c := range m.Content {
				if c.Type == "image_url" {
					gotImageURL = c.ImageURL.URL
				}
			}
		}
		_, _ = io.WriteString(w, completion("GROWTH_STAGE: Fruiting\nHARVEST_READY: Yes\nEXPLANATION: Caps are fully open."))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, time.Second).Analyze(context.Background(), testImage, models.Reading{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotPath != completionsPath {
		t.Errorf("path = %q", gotPath)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q", gotModel)
	}
	if !strings.HasPrefix(gotImageURL, "data:image/png;base64,") {
		t.Errorf("image url = %q", gotImageURL)
	}
	if res.GrowthStage != "Fruiting" || res.HarvestReady != "Yes" || res.Explanation != "Caps are fully open." {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAnalyzeAcceptsContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completion([]map[string]string{
			{"type": "text", "text": "GROWTH_STAGE: Pinning"},
			{"type": "text", "text": "HARVEST_READY: No"},
		}))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, time.Second).Analyze(context.Background(), testImage, models.Reading{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.GrowthStage != "Pinning" || res.HarvestReady != "No" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		}},
		{"empty content", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, completion("   "))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>")
		}},
		{"oversized reply", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, completion("GROWTH_STAGE: "+strings.Repeat("x", maxResponseBytes)))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(t, srv, 200*time.Millisecond).Analyze(context.Background(), testImage, models.Reading{})
			if !errors.Is(err, ErrAnalysis) {
				t.Fatalf("expected ErrAnalysis, got %v", err)
			}
		})
	}
}

func TestAnalyzeRequiresImage(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Analyze(context.Background(), models.EncodedImage{}, models.Reading{}); !errors.Is(err, ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}
	client, err := NewClient(Config{APIKey: " k ", BaseURL: "http://example.test/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.baseURL != "http://example.test" || client.model != defaultModel ||
		client.maxTokens != defaultMaxTokens || client.timeout != defaultTimeout || client.apiKey != "k" {
		t.Fatalf("unexpected defaults: %+v", client)
	}
}
