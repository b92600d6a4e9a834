package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/source"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const SourceID = "reddit"

// tokenSlack renews the access token shortly before reddit expires it.
const tokenSlack = time.Minute

// Config holds the script-app credentials and listing settings.
type Config struct {
	ClientID          string
	ClientSecret      string
	Username          string
	Password          string
	Subreddit         string
	UserAgent         string
	AuthURL           string
	APIURL            string
	TopPeriod         string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Adapter implements source.Source on top of the reddit OAuth listing API.
type Adapter struct {
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter

	// mu guards token and expiresAt only; it is never held across a request.
	mu          sync.Mutex
	token       string
	expiresAt   time.Time
	tokenFlight singleflight.Group
	now         func() time.Time
}

// NewAdapter creates a new reddit adapter.
// Parameters:
//   - cfg: credentials, subreddit and endpoint settings.
// Returns:
//   - *Adapter: initialized adapter; no request is made until the first fetch.
func NewAdapter(cfg Config) *Adapter {
	client := resty.New()
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Adapter{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// Close releases idle connections held by the HTTP client.
func (a *Adapter) Close() {
	a.client.GetClient().CloseIdleConnections()
}

type listingResponse struct {
	Kind string `json:"kind"`
	Data struct {
		Children []struct {
			Kind string  `json:"kind"`
			Data postDTO `json:"data"`
		} `json:"children"`
	} `json:"data"`
	Error   json.RawMessage `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

type postDTO struct {
	URL       string `json:"url"`
	PostHint  string `json:"post_hint"`
	IsSelf    bool   `json:"is_self"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

// FetchCandidates reads one page of the subreddit listing for category.
func (a *Adapter) FetchCandidates(ctx context.Context, category domain.Category, limit int) ([]domain.CandidateURL, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait: %v", source.ErrTransport, err)
	}

	params := map[string]string{
		"limit":    strconv.Itoa(limit),
		"raw_json": "1",
	}
	if category == domain.CategoryTop && a.cfg.TopPeriod != "" {
		params["t"] = a.cfg.TopPeriod
	}

	endpoint := fmt.Sprintf("%s/r/%s/%s", strings.TrimRight(a.cfg.APIURL, "/"), a.cfg.Subreddit, category)
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: listing request: %v", source.ErrTransport, err)
	}

	if err := a.checkStatus(resp, "listing"); err != nil {
		if resp.StatusCode() == http.StatusUnauthorized {
			a.invalidateToken()
		}
		return nil, err
	}

	var listing listingResponse
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("%w: decode listing: %v", source.ErrMalformedResponse, err)
	}
	if len(listing.Error) > 0 {
		return nil, fmt.Errorf("%w: listing error %s: %s", source.ErrMalformedResponse, listing.Error, listing.Message)
	}
	if listing.Kind != "Listing" {
		return nil, fmt.Errorf("%w: unexpected kind %q", source.ErrMalformedResponse, listing.Kind)
	}

	candidates := make([]domain.CandidateURL, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if len(candidates) == limit {
			break
		}
		post := child.Data
		if post.URL == "" {
			continue
		}
		media := domain.MediaOther
		if post.PostHint == "image" {
			media = domain.MediaImage
		}
		candidates = append(candidates, domain.CandidateURL{
			URL:       post.URL,
			Media:     media,
			IsSelf:    post.IsSelf,
			Title:     post.Title,
			Permalink: post.Permalink,
		})
	}

	logger.With(logger.Fields{
		logger.FieldCategory: string(category),
		logger.FieldCount:    len(candidates),
	}).Debug(ctx, "Fetched reddit listing")

	return candidates, nil
}

// accessToken returns a cached bearer token, requesting a new one when it is
// missing or about to expire. Concurrent callers share one token request.
func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	if token, ok := a.cachedToken(); ok {
		return token, nil
	}

	v, err, _ := a.tokenFlight.Do("token", func() (interface{}, error) {
		if token, ok := a.cachedToken(); ok {
			return token, nil
		}
		token, expiresAt, err := a.requestToken(ctx)
		if err != nil {
			return "", err
		}
		a.mu.Lock()
		a.token = token
		a.expiresAt = expiresAt
		a.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Adapter) cachedToken() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.now().Before(a.expiresAt) {
		return a.token, true
	}
	return "", false
}

// requestToken performs the password grant.
func (a *Adapter) requestToken(ctx context.Context) (string, time.Time, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: rate limiter wait: %v", source.ErrTransport, err)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetBasicAuth(a.cfg.ClientID, a.cfg.ClientSecret).
		SetFormData(map[string]string{
			"grant_type": "password",
			"username":   a.cfg.Username,
			"password":   a.cfg.Password,
		}).
		Post(a.cfg.AuthURL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: token request: %v", source.ErrTransport, err)
	}
	if err := a.checkStatus(resp, "token"); err != nil {
		return "", time.Time{}, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: decode token: %v", source.ErrMalformedResponse, err)
	}
	// reddit reports bad credentials as 200 {"error": "invalid_grant"}
	if tok.Error != "" {
		return "", time.Time{}, fmt.Errorf("%w: %s", source.ErrAuth, tok.Error)
	}
	if tok.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty access token", source.ErrMalformedResponse)
	}

	logger.CtxDebug(ctx, "Obtained reddit access token, expires in %ds", tok.ExpiresIn)
	return tok.AccessToken, a.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack), nil
}

func (a *Adapter) invalidateToken() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

func (a *Adapter) checkStatus(resp *resty.Response, op string) error {
	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned status %d", source.ErrAuth, op, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s returned status %d", source.ErrRateLimited, op, code)
	default:
		return fmt.Errorf("%w: %s returned status %d", source.ErrTransport, op, code)
	}
}
