package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeVideo struct {
	ID    int
	Title string
	Slug  string
}

type fakeAPIServer struct {
	*httptest.Server
	tokenCalls atomic.Int32
}

// newFakeAPIServer serves the token endpoint, video metadata and delivery
// manifests for videos. Every API request must carry the issued token.
func newFakeAPIServer(t *testing.T, videos ...fakeVideo) *fakeAPIServer {
	t.Helper()
	f := &fakeAPIServer{}
	byKey := make(map[string]fakeVideo)
	for _, v := range videos {
		byKey[fmt.Sprint(v.ID)] = v
		if v.Slug != "" {
			byKey[v.Slug] = v
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "password" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("password") != "secret" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
			return
		}
		writeJSONResponse(w, map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("GET /v2/sites/1/videos/{key}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := byKey[r.PathValue("key")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSONResponse(w, map[string]any{"id": v.ID, "title": v.Title})
	})
	mux.HandleFunc("GET /v2/sites/1/videos/{key}/delivery", func(w http.ResponseWriter, r *http.Request) {
		v, ok := byKey[r.PathValue("key")]
		if !ok || r.URL.Query().Get("offline_license") != "1" {
			http.NotFound(w, r)
			return
		}
		writeJSONResponse(w, map[string]any{"streams": []map[string]string{
			{"method": "hls", "url": fmt.Sprintf("%s/media/%d.m3u8", f.URL, v.ID)},
			{"method": "dash", "url": fmt.Sprintf("%s/media/%d.mpd", f.URL, v.ID)},
		}})
	})

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v2/") && r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// configSection returns the auth and api config pointing at the server.
func (f *fakeAPIServer) configSection() string {
	return fmt.Sprintf(`
[auth]
client_id = "cid"
client_secret = "csecret"
username = "user@example.com"
password = "secret"
persist_token = false

[api]
base_url = "%s/v2"
token_url = "%s/token"
site_id = "1"
requests_per_second = 0
`, f.URL, f.URL)
}

func writeJSONResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
