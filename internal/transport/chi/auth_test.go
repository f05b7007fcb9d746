package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{"no keys disables auth", nil, "/categories", "", http.StatusOK},
		{"blank keys disable auth", []string{"", ""}, "/categories", "", http.StatusOK},
		{"missing header", []string{"secret"}, "/categories", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, "/categories", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong key", []string{"secret"}, "/products", "Bearer wrong", http.StatusUnauthorized},
		{"prefix of key", []string{"secret"}, "/products", "Bearer secre", http.StatusUnauthorized},
		{"valid key", []string{"secret"}, "/products", "Bearer secret", http.StatusOK},
		{"second key", []string{"k1", "k2"}, "/products", "Bearer k2", http.StatusOK},
		{"health exempt", []string{"secret"}, "/health", "", http.StatusOK},
		{"metrics exempt", []string{"secret"}, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(okHandler())

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Code != ErrorCodeUnauthorized {
				t.Errorf("code: got %s, want %s", resp.Code, ErrorCodeUnauthorized)
			}
		})
	}
}
