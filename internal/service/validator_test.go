package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidator_Validate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
		case "/params.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
		case "/gone.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusNotFound)
		case "/page.jpg":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		case "/untyped.jpg":
			w.Header()["Content-Type"] = nil
		case "/slow.jpg":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			w.Header().Set("Content-Type", "image/jpeg")
		}
	}))
	defer server.Close()

	v := NewValidator(&ValidatorConfig{Timeout: 200 * time.Millisecond, UserAgent: "test-agent"})
	defer v.Close()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "image", path: "/ok.jpg", want: true},
		{name: "image with parameters", path: "/params.png", want: true},
		{name: "not found", path: "/gone.jpg", want: false},
		{name: "html page", path: "/page.jpg", want: false},
		{name: "missing content type", path: "/untyped.jpg", want: false},
		{name: "timeout", path: "/slow.jpg", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Validate(context.Background(), server.URL+tt.path); got != tt.want {
				t.Errorf("Validate(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidator_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/a.jpg"
	server.Close()

	v := NewValidator(&ValidatorConfig{Timeout: time.Second})
	if v.Validate(context.Background(), url) {
		t.Error("expected unreachable host to be rejected")
	}
}
