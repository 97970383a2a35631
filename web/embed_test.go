package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestSPAHandler(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":    {Data: []byte("<html>app</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	}
	h := SPAHandler(fsys)

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/", http.StatusOK, "app"},
		{"/assets/app.js", http.StatusOK, "console.log"},
		{"/settings", http.StatusOK, "app"},
		{"/api/unknown", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.wantCode {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.wantCode, w.Code)
		}
		if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
			t.Errorf("%s: expected body containing %q, got %q", tt.path, tt.wantBody, w.Body.String())
		}
	}
}

func TestDistContainsIndex(t *testing.T) {
	if _, err := Dist().Open("index.html"); err != nil {
		t.Fatalf("Expected embedded index.html: %v", err)
	}
}
