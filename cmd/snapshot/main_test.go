package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/source/staging"
)

func TestWriteManifest_ReadableByStagingSource(t *testing.T) {
	dir := t.TempDir()
	entries := []*domain.CacheEntry{
		{Category: domain.CategoryHot, URLs: []string{"https://i.example.com/a.jpg", "https://i.example.com/b.png"}, RefreshedAt: time.Now()},
		{Category: domain.CategoryTop, URLs: []string{"https://i.example.com/c.gif"}, RefreshedAt: time.Now()},
	}

	if err := writeManifest(filepath.Join(dir, staging.ManifestFileName), entries); err != nil {
		t.Fatalf("writeManifest failed: %v", err)
	}

	src := staging.NewAdapter(dir)
	hot, err := src.FetchCandidates(context.Background(), domain.CategoryHot, 10)
	if err != nil {
		t.Fatalf("FetchCandidates failed: %v", err)
	}
	if len(hot) != 2 || hot[0].URL != "https://i.example.com/a.jpg" || hot[1].Media != domain.MediaImage {
		t.Errorf("hot = %+v", hot)
	}
	top, err := src.FetchCandidates(context.Background(), domain.CategoryTop, 10)
	if err != nil {
		t.Fatalf("FetchCandidates failed: %v", err)
	}
	if len(top) != 1 {
		t.Errorf("top = %+v", top)
	}
}

func TestWriteManifest_CreateError(t *testing.T) {
	missingDir := filepath.Join(t.TempDir(), "missing", "manifest.jsonl")
	if err := writeManifest(missingDir, nil); err == nil {
		t.Error("expected an error for a path in a missing directory")
	}
	if _, err := os.Stat(missingDir); !os.IsNotExist(err) {
		t.Error("no file should have been created")
	}
}
