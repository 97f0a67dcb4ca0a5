package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestETag(t *testing.T) {
	body := snapshotPayload()
	h := ETag(jsonHandler(body))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest("GET", "/api/tree/snapshot", nil))
	tag := first.Header().Get("ETag")
	if tag == "" {
		t.Fatal("no ETag on first response")
	}
	if first.Body.Len() != len(body) {
		t.Fatalf("body length = %d, want %d", first.Body.Len(), len(body))
	}

	tests := []struct {
		name   string
		match  string
		status int
	}{
		{"matching", tag, http.StatusNotModified},
		{"weak matching", "W/" + tag, http.StatusNotModified},
		{"in list", `"abc", ` + tag, http.StatusNotModified},
		{"stale", `"abc"`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/tree/snapshot", nil)
			req.Header.Set("If-None-Match", tt.match)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status == http.StatusNotModified && rr.Body.Len() != 0 {
				t.Errorf("304 carried %d body bytes", rr.Body.Len())
			}
		})
	}
}

func TestETagSkipsErrorsAndWrites(t *testing.T) {
	notFound := ETag(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{}}`))
	}))
	rr := httptest.NewRecorder()
	notFound.ServeHTTP(rr, httptest.NewRequest("GET", "/api/snapshots/latest", nil))
	if rr.Code != http.StatusNotFound || rr.Header().Get("ETag") != "" {
		t.Errorf("404: status %d etag %q", rr.Code, rr.Header().Get("ETag"))
	}

	post := httptest.NewRecorder()
	ETag(jsonHandler([]byte("{}"))).ServeHTTP(post, httptest.NewRequest("POST", "/api/nodes", nil))
	if post.Header().Get("ETag") != "" {
		t.Error("POST response should not get an ETag")
	}
}
