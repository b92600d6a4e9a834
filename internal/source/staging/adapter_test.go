package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/source"
)

func writeManifest(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	body := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}

func TestAdapter_FetchCandidates(t *testing.T) {
	dir := writeManifest(t,
		`{"category": "hot", "url": "https://i.example/1.jpg", "post_hint": "image"}`,
		`{"category": "top", "url": "https://i.example/2.jpg", "post_hint": "image"}`,
		`not json`,
		``,
		`{"category": "hot", "url": "https://example/self", "is_self": true}`,
		`{"category": "hot", "url": "https://i.example/3.png", "post_hint": "image"}`,
	)
	a := NewAdapter(dir)

	got, err := a.FetchCandidates(context.Background(), domain.CategoryHot, 10)
	if err != nil {
		t.Fatalf("FetchCandidates failed: %v", err)
	}

	want := []string{"https://i.example/1.jpg", "https://example/self", "https://i.example/3.png"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.URL != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, c.URL, want[i])
		}
	}
	if !got[1].IsSelf || got[1].Media != domain.MediaOther {
		t.Errorf("self post not flagged: %+v", got[1])
	}
	if got[0].Media != domain.MediaImage {
		t.Errorf("image post not flagged: %+v", got[0])
	}
}

func TestAdapter_FetchCandidates_Limit(t *testing.T) {
	dir := writeManifest(t,
		`{"category": "rising", "url": "https://i.example/1.jpg"}`,
		`{"category": "rising", "url": "https://i.example/2.jpg"}`,
		`{"category": "rising", "url": "https://i.example/3.jpg"}`,
	)

	got, err := NewAdapter(dir).FetchCandidates(context.Background(), domain.CategoryRising, 2)
	if err != nil {
		t.Fatalf("FetchCandidates failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d candidates, want 2", len(got))
	}
}

func TestAdapter_MissingManifest(t *testing.T) {
	_, err := NewAdapter(t.TempDir()).FetchCandidates(context.Background(), domain.CategoryHot, 10)
	if !errors.Is(err, source.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}
