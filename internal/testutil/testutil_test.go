package testutil

import (
	"net/http"
	"testing"
)

func TestServeAndDecode(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	})

	rec := Get(h, "/api/status")
	AssertStatusCode(t, rec.Code, http.StatusOK)
	body := DecodeJSON[map[string]string](t, rec)
	if body["path"] != "/api/status" {
		t.Errorf("path = %q, want /api/status", body["path"])
	}

	AssertStatusCode(t, Serve(h, http.MethodPost, "/").Code, http.StatusMethodNotAllowed)
}
