package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		path    string
		headers map[string]string
		want    int
	}{
		{"valid key", "secret-key", "/api/v1/backtests", map[string]string{"X-API-Key": "secret-key"}, http.StatusOK},
		{"bearer token", "secret-key", "/api/v1/backtests", map[string]string{"Authorization": "Bearer secret-key"}, http.StatusOK},
		{"missing key", "secret-key", "/api/v1/backtests", nil, http.StatusUnauthorized},
		{"invalid key", "secret-key", "/api/v1/backtests", map[string]string{"X-API-Key": "wrong-key"}, http.StatusUnauthorized},
		{"public path", "secret-key", "/api/health", nil, http.StatusOK},
		{"auth disabled", "", "/api/v1/backtests", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := APIKeyAuth(tt.key, "/api/health")(okHandler)

			req := httptest.NewRequest("GET", tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
