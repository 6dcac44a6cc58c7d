// Package steam implements a read-only client for the public Steam
// storefront API: app details and review summaries, with a sliding-window
// rate limiter and bounded exponential retry around transient failures.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public storefront API origin.
const DefaultBaseURL = "https://store.steampowered.com"

var (
	// ErrAppNotFound indicates Steam has no data for the app id, either a
	// 404 or a success=false envelope.
	ErrAppNotFound = errors.New("steam: app not found")

	// ErrRateLimited indicates Steam returned 429 and retries were
	// exhausted. Callers should back off the whole sync, not just the call.
	ErrRateLimited = errors.New("steam: rate limited")
)

// AppDetails is the subset of the storefront appdetails payload the
// application keeps.
type AppDetails struct {
	AppID       int64
	Name        string
	Type        string
	Description string
	HeaderImage string
	ReleaseDate *string
	ParentAppID *int64
	IsFree      bool
	PriceCents  *int
	// PackageIDs lists the purchase packages from package_groups. Only
	// meaningful for bundle-typed apps.
	PackageIDs []int64
}

// ReviewSummary is the aggregate block of the appreviews endpoint.
type ReviewSummary struct {
	ReviewScore     int
	ReviewScoreDesc string
	TotalPositive   int
	TotalNegative   int
	TotalReviews    int
}

// Client talks to the Steam storefront API. All calls pass through the
// shared rate limiter before touching the network.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *WindowLimiter
	maxRetries uint64
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the storefront origin (used in tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient constructs a storefront client backed by the given limiter.
// maxRetries bounds the retry attempts per call on transient failures.
func NewClient(limiter *WindowLimiter, maxRetries int, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		maxRetries: uint64(maxRetries),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// appDetailsEnvelope mirrors the keyed response shape of /api/appdetails:
// the payload is an object keyed by the requested app id.
type appDetailsEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Name             string `json:"name"`
		Type             string `json:"type"`
		ShortDescription string `json:"short_description"`
		HeaderImage      string `json:"header_image"`
		IsFree           bool   `json:"is_free"`
		ReleaseDate      struct {
			ComingSoon bool   `json:"coming_soon"`
			Date       string `json:"date"`
		} `json:"release_date"`
		FullGame *struct {
			AppID string `json:"appid"`
		} `json:"fullgame"`
		PriceOverview *struct {
			Final int `json:"final"`
		} `json:"price_overview"`
		PackageGroups []struct {
			Subs []struct {
				PackageID int64 `json:"packageid"`
			} `json:"subs"`
		} `json:"package_groups"`
	} `json:"data"`
}

// AppDetails fetches the storefront details for one app.
func (c *Client) AppDetails(ctx context.Context, appID int64) (*AppDetails, error) {
	q := url.Values{}
	q.Set("appids", strconv.FormatInt(appID, 10))

	body, err := c.fetch(ctx, "/api/appdetails", q)
	if err != nil {
		return nil, err
	}

	var envelope map[string]appDetailsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("steam: decode appdetails for %d: %w", appID, err)
	}
	entry, ok := envelope[strconv.FormatInt(appID, 10)]
	if !ok || !entry.Success {
		return nil, ErrAppNotFound
	}

	d := &AppDetails{
		AppID:       appID,
		Name:        entry.Data.Name,
		Type:        entry.Data.Type,
		Description: entry.Data.ShortDescription,
		HeaderImage: entry.Data.HeaderImage,
		IsFree:      entry.Data.IsFree,
	}
	if !entry.Data.ReleaseDate.ComingSoon {
		if iso := normalizeReleaseDate(entry.Data.ReleaseDate.Date); iso != "" {
			d.ReleaseDate = &iso
		}
	}
	if fg := entry.Data.FullGame; fg != nil {
		if parent, err := strconv.ParseInt(fg.AppID, 10, 64); err == nil {
			d.ParentAppID = &parent
		}
	}
	if po := entry.Data.PriceOverview; po != nil {
		cents := po.Final
		d.PriceCents = &cents
	}
	for _, pg := range entry.Data.PackageGroups {
		for _, sub := range pg.Subs {
			d.PackageIDs = append(d.PackageIDs, sub.PackageID)
		}
	}
	return d, nil
}

// AppReviews fetches the aggregate review summary for one app.
func (c *Client) AppReviews(ctx context.Context, appID int64) (*ReviewSummary, error) {
	q := url.Values{}
	q.Set("json", "1")
	q.Set("language", "all")
	q.Set("purchase_type", "all")
	q.Set("num_per_page", "0")

	body, err := c.fetch(ctx, "/appreviews/"+strconv.FormatInt(appID, 10), q)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Success      int `json:"success"`
		QuerySummary struct {
			ReviewScore     int    `json:"review_score"`
			ReviewScoreDesc string `json:"review_score_desc"`
			TotalPositive   int    `json:"total_positive"`
			TotalNegative   int    `json:"total_negative"`
			TotalReviews    int    `json:"total_reviews"`
		} `json:"query_summary"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("steam: decode appreviews for %d: %w", appID, err)
	}
	if payload.Success != 1 {
		return nil, ErrAppNotFound
	}

	qs := payload.QuerySummary
	return &ReviewSummary{
		ReviewScore:     qs.ReviewScore,
		ReviewScoreDesc: qs.ReviewScoreDesc,
		TotalPositive:   qs.TotalPositive,
		TotalNegative:   qs.TotalNegative,
		TotalReviews:    qs.TotalReviews,
	}, nil
}

// fetch performs one rate-limited GET with bounded exponential retry. Only
// transport failures and 5xx responses are retried; a 429 aborts immediately
// since hammering a rate-limited endpoint extends the penalty.
func (c *Client) fetch(ctx context.Context, path string, q url.Values) ([]byte, error) {
	var body []byte

	op := func() error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrAppNotFound)
		case resp.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(ErrRateLimited)
		case resp.StatusCode >= 500:
			return fmt.Errorf("steam: %s: status %d", path, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("steam: %s: status %d", path, resp.StatusCode))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Str("path", path).Msg("steam request failed, retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

const maxResponseBytes = 4 << 20

// releaseDateLayouts covers the formats the storefront emits depending on
// region and precision, e.g. "14 Nov, 2023", "Nov 14, 2023", "Nov 2023".
var releaseDateLayouts = []string{
	"2 Jan, 2006",
	"Jan 2, 2006",
	"Jan 2006",
	"2006",
}

// normalizeReleaseDate converts a storefront release date string to ISO
// YYYY-MM-DD so stored dates compare correctly as strings. Unparseable
// values yield "".
func normalizeReleaseDate(raw string) string {
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
