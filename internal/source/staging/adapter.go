package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/source"
)

// ManifestFileName is the JSONL manifest file name in a staging directory.
const ManifestFileName = "manifest.jsonl"

// ManifestItem represents one post in manifest.jsonl. Lines appear in listing order.
type ManifestItem struct {
	Category  string `json:"category"`
	URL       string `json:"url"`
	PostHint  string `json:"post_hint"`
	IsSelf    bool   `json:"is_self"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
}

// Adapter implements the Source interface for a local staging manifest.
// The manifest is re-read on every fetch so edits are picked up by the next refresh.
type Adapter struct {
	basePath string
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - basePath: directory containing manifest.jsonl.
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath string) *Adapter {
	return &Adapter{basePath: basePath}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "staging:" + filepath.Base(a.basePath)
}

// FetchCandidates returns the first limit manifest posts of category, in file order.
// Malformed lines are skipped; a missing or unreadable manifest is a transport error.
func (a *Adapter) FetchCandidates(ctx context.Context, category domain.Category, limit int) ([]domain.CandidateURL, error) {
	manifestPath := filepath.Join(a.basePath, ManifestFileName)

	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open manifest: %v", source.ErrTransport, err)
	}
	defer file.Close()

	candidates := []domain.CandidateURL{}
	skipped := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() && len(candidates) < limit {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrTransport, err)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			skipped++
			continue
		}
		if domain.Category(item.Category) != category || item.URL == "" {
			continue
		}

		media := domain.MediaOther
		if item.PostHint == "image" {
			media = domain.MediaImage
		}
		candidates = append(candidates, domain.CandidateURL{
			URL:       item.URL,
			Media:     media,
			IsSelf:    item.IsSelf,
			Title:     item.Title,
			Permalink: item.Permalink,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", source.ErrMalformedResponse, err)
	}

	if skipped > 0 {
		logger.With(logger.Fields{logger.FieldCount: skipped}).Warn(ctx, "Skipped malformed manifest lines in %s", manifestPath)
	}

	return candidates, nil
}
