package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/timmy/randmeme/internal/cache"
	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/retry"
	"github.com/timmy/randmeme/internal/source"
)

// fakeSource serves fixed listings and counts calls per category.
type fakeSource struct {
	mu       sync.Mutex
	listings map[domain.Category][]domain.CandidateURL
	errs     map[domain.Category]error
	calls    map[domain.Category]int
	fetched  chan domain.Category
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		listings: map[domain.Category][]domain.CandidateURL{},
		errs:     map[domain.Category]error{},
		calls:    map[domain.Category]int{},
	}
}

func (s *fakeSource) GetSourceID() string { return "fake" }

func (s *fakeSource) FetchCandidates(_ context.Context, category domain.Category, limit int) ([]domain.CandidateURL, error) {
	s.mu.Lock()
	s.calls[category]++
	err := s.errs[category]
	listing := s.listings[category]
	s.mu.Unlock()

	if s.fetched != nil {
		select {
		case s.fetched <- category:
		default:
		}
	}
	if err != nil {
		return nil, err
	}
	if len(listing) > limit {
		listing = listing[:limit]
	}
	return listing, nil
}

func (s *fakeSource) callCount(category domain.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[category]
}

// fakeValidator accepts URLs in valid and records every URL it is asked about.
type fakeValidator struct {
	mu      sync.Mutex
	valid   map[string]bool
	checked []string
}

func (v *fakeValidator) Validate(_ context.Context, url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.checked = append(v.checked, url)
	return v.valid[url]
}

func (v *fakeValidator) checkedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.checked)
}

func imagePosts(prefix string, n int) []domain.CandidateURL {
	posts := make([]domain.CandidateURL, n)
	for i := range posts {
		posts[i] = domain.CandidateURL{
			URL:   fmt.Sprintf("https://i.example.com/%s-%02d.jpg", prefix, i),
			Media: domain.MediaImage,
		}
	}
	return posts
}

func newTestRefresher(src source.Source, v URLValidator, store *cache.Store, maxEntries int) *Refresher {
	return NewRefresher(src, v, store, retry.NewPolicy(5, 0, nil), &RefresherConfig{
		CandidateLimit:   70,
		MaxEntries:       maxEntries,
		Interval:         time.Hour,
		ValidatorWorkers: 4,
	})
}

func TestRefreshCategory_KeepsValidURLsInListingOrder(t *testing.T) {
	posts := imagePosts("hot", 60)
	validator := &fakeValidator{valid: map[string]bool{}}
	var want []string
	for i, p := range posts {
		// every fourth post is dead
		if i%4 != 3 {
			validator.valid[p.URL] = true
			want = append(want, p.URL)
		}
	}

	src := newFakeSource()
	src.listings[domain.CategoryHot] = posts
	store := cache.NewStore(50)

	entry, err := newTestRefresher(src, validator, store, 50).RefreshCategory(context.Background(), domain.CategoryHot)
	if err != nil {
		t.Fatalf("RefreshCategory failed: %v", err)
	}

	if entry.Len() != 45 {
		t.Fatalf("pool size = %d, want 45", entry.Len())
	}
	for i := range want {
		if entry.URLs[i] != want[i] {
			t.Fatalf("URLs[%d] = %s, want %s", i, entry.URLs[i], want[i])
		}
	}

	snapshot, _ := store.Snapshot(domain.CategoryHot)
	if snapshot != entry {
		t.Error("published entry is not the store snapshot")
	}
}

func TestRefreshCategory_StopsAtMaxEntries(t *testing.T) {
	posts := imagePosts("top", 70)
	validator := &fakeValidator{valid: map[string]bool{}}
	for _, p := range posts {
		validator.valid[p.URL] = true
	}
	src := newFakeSource()
	src.listings[domain.CategoryTop] = posts

	entry, err := newTestRefresher(src, validator, cache.NewStore(50), 50).RefreshCategory(context.Background(), domain.CategoryTop)
	if err != nil {
		t.Fatalf("RefreshCategory failed: %v", err)
	}

	if entry.Len() != 50 {
		t.Errorf("pool size = %d, want 50", entry.Len())
	}
	if entry.URLs[49] != posts[49].URL {
		t.Errorf("last URL = %s, want %s", entry.URLs[49], posts[49].URL)
	}
	if got := validator.checkedCount(); got != 50 {
		t.Errorf("validated %d URLs, want 50", got)
	}
}

func TestRefreshCategory_ValidatesOnlyWhatIsNeeded(t *testing.T) {
	posts := imagePosts("rising", 20)
	validator := &fakeValidator{valid: map[string]bool{}}
	// first 3 dead, the rest valid
	for _, p := range posts[3:] {
		validator.valid[p.URL] = true
	}
	src := newFakeSource()
	src.listings[domain.CategoryRising] = posts

	entry, err := newTestRefresher(src, validator, cache.NewStore(5), 5).RefreshCategory(context.Background(), domain.CategoryRising)
	if err != nil {
		t.Fatalf("RefreshCategory failed: %v", err)
	}

	if entry.Len() != 5 || entry.URLs[0] != posts[3].URL {
		t.Errorf("pool = %v, want posts 3..7", entry.URLs)
	}
	// window of 5 finds 2, window of 3 finds 3
	if got := validator.checkedCount(); got != 8 {
		t.Errorf("validated %d URLs, want 8", got)
	}
}

func TestRefreshCategory_FiltersCandidates(t *testing.T) {
	listing := []domain.CandidateURL{
		{URL: "https://i.example.com/a.jpg", Media: domain.MediaImage},
		{URL: "https://i.example.com/a.jpg", Media: domain.MediaImage},
		{URL: "https://www.example.com/r/x/comments/1", IsSelf: true},
		{URL: "https://v.example.com/clip.mp4", Media: domain.MediaOther},
		{URL: "https://i.example.com/b.PNG?width=640", Media: domain.MediaImage},
		{URL: "https://example.com/gallery/123", Media: domain.MediaOther},
		{URL: "https://i.example.com/c.gif", Media: domain.MediaImage},
	}
	validator := &fakeValidator{valid: map[string]bool{
		"https://i.example.com/a.jpg":           true,
		"https://i.example.com/b.PNG?width=640": true,
		"https://i.example.com/c.gif":           true,
		"https://v.example.com/clip.mp4":        true,
		"https://example.com/gallery/123":       true,
	}}
	src := newFakeSource()
	src.listings[domain.CategoryHot] = listing

	entry, err := newTestRefresher(src, validator, cache.NewStore(50), 50).RefreshCategory(context.Background(), domain.CategoryHot)
	if err != nil {
		t.Fatalf("RefreshCategory failed: %v", err)
	}

	want := []string{
		"https://i.example.com/a.jpg",
		"https://i.example.com/b.PNG?width=640",
		"https://i.example.com/c.gif",
	}
	if strings.Join(entry.URLs, ",") != strings.Join(want, ",") {
		t.Errorf("pool = %v, want %v", entry.URLs, want)
	}
	if got := validator.checkedCount(); got != 3 {
		t.Errorf("validated %d URLs, want 3", got)
	}
}

func TestRefreshCategory_ListingFailureKeepsPreviousPool(t *testing.T) {
	store := cache.NewStore(50)
	top, _ := store.Get(domain.CategoryTop)
	previous := top.Replace([]string{"https://i.example.com/old-1.jpg", "https://i.example.com/old-2.jpg"}, time.Now())

	src := newFakeSource()
	src.errs[domain.CategoryTop] = fmt.Errorf("%w: connection refused", source.ErrTransport)

	_, err := newTestRefresher(src, &fakeValidator{}, store, 50).RefreshCategory(context.Background(), domain.CategoryTop)
	if !errors.Is(err, source.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got := src.callCount(domain.CategoryTop); got != 5 {
		t.Errorf("listing called %d times, want 5", got)
	}
	if top.Snapshot() != previous {
		t.Error("previous pool was replaced")
	}

	selector := NewSelector(store)
	selector.intn = func(int) int { return 1 } // top, then second URL
	sel, err := selector.Select()
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.URL != "https://i.example.com/old-2.jpg" {
		t.Errorf("selected %s", sel.URL)
	}
}

func TestRefreshCategory_EmptyValidationPublishesEmptyPool(t *testing.T) {
	store := cache.NewStore(50)
	hot, _ := store.Get(domain.CategoryHot)
	hot.Replace([]string{"https://i.example.com/old.jpg"}, time.Now())

	src := newFakeSource()
	src.listings[domain.CategoryHot] = imagePosts("hot", 10)

	entry, err := newTestRefresher(src, &fakeValidator{}, store, 50).RefreshCategory(context.Background(), domain.CategoryHot)
	if err != nil {
		t.Fatalf("RefreshCategory failed: %v", err)
	}
	if !entry.IsEmpty() || !hot.Snapshot().IsEmpty() {
		t.Error("expected the pool to be replaced by an empty one")
	}
}

func TestRefreshCategory_CancelledPublishesNothing(t *testing.T) {
	store := cache.NewStore(50)
	hot, _ := store.Get(domain.CategoryHot)
	previous := hot.Replace([]string{"https://i.example.com/old.jpg"}, time.Now())

	src := newFakeSource()
	src.listings[domain.CategoryHot] = imagePosts("hot", 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRefresher(src, &fakeValidator{}, store, 50).RefreshCategory(ctx, domain.CategoryHot)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if hot.Snapshot() != previous {
		t.Error("cancelled refresh replaced the pool")
	}
}

func TestRefreshAll_IsolatesCategoryFailures(t *testing.T) {
	validator := &fakeValidator{valid: map[string]bool{}}
	src := newFakeSource()
	for _, category := range []domain.Category{domain.CategoryHot, domain.CategoryRising} {
		posts := imagePosts(string(category), 3)
		src.listings[category] = posts
		for _, p := range posts {
			validator.valid[p.URL] = true
		}
	}
	src.errs[domain.CategoryTop] = source.ErrRateLimited

	store := cache.NewStore(50)
	err := newTestRefresher(src, validator, store, 50).RefreshAll(context.Background())
	if !errors.Is(err, source.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "refresh top") {
		t.Errorf("error does not name the category: %v", err)
	}

	for category, want := range map[domain.Category]int{
		domain.CategoryHot:    3,
		domain.CategoryTop:    0,
		domain.CategoryRising: 3,
	} {
		entry, _ := store.Snapshot(category)
		if entry.Len() != want {
			t.Errorf("%s pool size = %d, want %d", category, entry.Len(), want)
		}
	}
}

func TestRun_RefreshesImmediatelyAndStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	src.fetched = make(chan domain.Category, 3)
	refresher := newTestRefresher(src, &fakeValidator{}, cache.NewStore(50), 50)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refresher.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-src.fetched:
		case <-time.After(2 * time.Second):
			t.Fatal("refresher did not start a cycle")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
