package steamgifts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the production SteamGifts origin. Tests point the client
// at an httptest server instead.
const DefaultBaseURL = "https://www.steamgifts.com"

// GiveawayURL returns the canonical page URL for a giveaway code.
func GiveawayURL(code string) string {
	return DefaultBaseURL + "/giveaway/" + code + "/"
}

// ListOptions narrows a giveaway listing request.
type ListOptions struct {
	// Query is an optional search query.
	Query string
	// Type selects a listing flavor: "wishlist", "recommended", "new",
	// "group", or empty for the default listing.
	Type string
	// DLCOnly restricts the listing to DLC giveaways.
	DLCOnly bool
	// MinCopies restricts the listing to multi-copy giveaways.
	MinCopies int
}

// ListedGiveaway is one row parsed from a giveaway listing page.
type ListedGiveaway struct {
	Code         string
	GameName     string
	Price        int
	Copies       int
	Entries      int
	EndTime      *time.Time
	ThumbnailURL string
	GameID       *int64
	IsEntered    bool
	IsWishlist   bool
}

// WonGiveaway is one row parsed from the /giveaways/won history page.
type WonGiveaway struct {
	Code     string
	GameName string
	GameID   *int64
	WonAt    *time.Time
	Received bool
	SteamKey *string
}

// EnteredGiveaway is one row parsed from the /giveaways/entered history page.
type EnteredGiveaway struct {
	Code      string
	GameName  string
	GameID    *int64
	Price     int
	Entries   int
	EndTime   *time.Time
	EnteredAt *time.Time
}

// UserInfo is the authenticated user's identity as scraped from the site nav.
type UserInfo struct {
	Username string
	Points   int
}

// Client is an authenticated SteamGifts scraping client. It holds the
// PHPSESSID session cookie and lazily maintains the XSRF token required for
// mutating POSTs, refreshing it from the home page whenever a mutating call
// finds none cached.
//
// The client performs no retries of its own; see the package documentation
// for the error taxonomy.
type Client struct {
	baseURL   string
	phpSessID string
	userAgent string

	httpClient *http.Client

	mu        sync.Mutex
	xsrfToken string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the SteamGifts origin (used in tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithXSRFToken seeds a known XSRF token, skipping the initial refresh.
func WithXSRFToken(tok string) Option {
	return func(c *Client) { c.xsrfToken = tok }
}

// NewClient constructs a SteamGifts client for the given session cookie and
// user agent. The cookie may be empty, in which case every call fails with
// ErrNotConfigured.
func NewClient(phpSessID, userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		phpSessID:  phpSessID,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// get performs an authenticated GET and returns the response. The caller
// owns the body.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) (*http.Response, error) {
	if c.phpSessID == "" {
		return nil, ErrNotConfigured
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return resp, nil
}

// postForm performs an authenticated form POST and returns the response.
func (c *Client) postForm(ctx context.Context, op, path string, form url.Values) (*http.Response, error) {
	if c.phpSessID == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return resp, nil
}

// decorate attaches the session cookie and user agent.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.AddCookie(&http.Cookie{Name: "PHPSESSID", Value: c.phpSessID})
}

// xsrf returns the cached XSRF token, refreshing it from the home page when
// none is cached yet.
func (c *Client) xsrf(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.xsrfToken
	c.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return c.refreshXSRF(ctx)
}

// refreshXSRF fetches the home page and extracts the XSRF token from the
// hidden form input, falling back to the JSON-encoded data-form attribute.
// A page with neither means the session is no longer authenticated.
func (c *Client) refreshXSRF(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "refresh_xsrf", "/", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", siteErr("refresh_xsrf", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", wrapErr("refresh_xsrf", err)
	}

	tok := extractXSRFToken(doc)
	if tok == "" {
		return "", ErrSessionExpired
	}

	c.mu.Lock()
	c.xsrfToken = tok
	c.mu.Unlock()
	return tok, nil
}

// extractXSRFToken pulls the XSRF token out of a parsed page: first the
// hidden <input name="xsrf_token">, then any element carrying a JSON-encoded
// data-form attribute.
func extractXSRFToken(doc *goquery.Document) string {
	if v, ok := doc.Find(`input[name="xsrf_token"]`).First().Attr("value"); ok && v != "" {
		return v
	}

	var tok string
	doc.Find("[data-form]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw, _ := s.Attr("data-form")
		var form struct {
			XSRFToken string `json:"xsrf_token"`
		}
		if err := json.Unmarshal([]byte(raw), &form); err == nil && form.XSRFToken != "" {
			tok = form.XSRFToken
			return false
		}
		return true
	})
	return tok
}

// ListGiveaways fetches one page of the giveaway search listing and returns
// the parsed rows. Pinned/promotional rows are skipped, and rows that fail to
// parse are dropped without failing the batch.
func (c *Client) ListGiveaways(ctx context.Context, page int, opts ListOptions) ([]ListedGiveaway, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.DLCOnly {
		q.Set("dlc", "true")
	}
	if opts.MinCopies > 0 {
		q.Set("copy_min", strconv.Itoa(opts.MinCopies))
	}

	resp, err := c.get(ctx, "list_giveaways", "/giveaways/search", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, siteErr("list_giveaways", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, wrapErr("list_giveaways", err)
	}

	var out []ListedGiveaway
	doc.Find("div.giveaway__row-inner-wrap").Each(func(_ int, s *goquery.Selection) {
		// Pinned/promotional giveaways sit inside a dedicated container at
		// the top of wishlist pages; they are ads, not results.
		if s.ParentsFiltered("div.pinned-giveaways__inner-wrap").Length() > 0 {
			return
		}
		ga, ok := parseGiveawayRow(s)
		if !ok {
			return
		}
		ga.IsWishlist = opts.Type == "wishlist"
		out = append(out, ga)
	})
	return out, nil
}

// WonGiveaways fetches one page of the won-giveaways history.
func (c *Client) WonGiveaways(ctx context.Context, page int) ([]WonGiveaway, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	resp, err := c.get(ctx, "won_giveaways", "/giveaways/won", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, siteErr("won_giveaways", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, wrapErr("won_giveaways", err)
	}

	var out []WonGiveaway
	doc.Find("div.table__row-inner-wrap").Each(func(_ int, s *goquery.Selection) {
		if w, ok := parseWonRow(s); ok {
			out = append(out, w)
		}
	})
	return out, nil
}

// EnteredGiveaways fetches one page of the entered-giveaways history.
func (c *Client) EnteredGiveaways(ctx context.Context, page int) ([]EnteredGiveaway, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	resp, err := c.get(ctx, "entered_giveaways", "/giveaways/entered", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, siteErr("entered_giveaways", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, wrapErr("entered_giveaways", err)
	}

	var out []EnteredGiveaway
	doc.Find("div.table__row-inner-wrap").Each(func(_ int, s *goquery.Selection) {
		if e, ok := parseEnteredRow(s); ok {
			out = append(out, e)
		}
	})
	return out, nil
}

// Enter submits an entry for the given giveaway code. A false return with a
// nil error means the site rejected the entry (insufficient points, already
// ended, already entered); only transport/protocol problems raise errors.
func (c *Client) Enter(ctx context.Context, code string) (bool, error) {
	tok, err := c.xsrf(ctx)
	if err != nil {
		return false, err
	}

	form := url.Values{}
	form.Set("xsrf_token", tok)
	form.Set("do", "entry_insert")
	form.Set("code", code)

	resp, err := c.postForm(ctx, "enter", "/ajax.php", form)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, siteErr("enter", resp.StatusCode)
	}

	var result struct {
		Type string `json:"type"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, wrapErr("enter", err)
	}

	if result.Type == "success" {
		return true, nil
	}
	log.Warn().Str("code", code).Str("msg", result.Msg).Msg("giveaway entry rejected")
	return false, nil
}

// Leave withdraws an existing entry for the given giveaway code, refunding
// its points on the site. Mirrors Enter: false with a nil error means the
// site rejected the request.
func (c *Client) Leave(ctx context.Context, code string) (bool, error) {
	tok, err := c.xsrf(ctx)
	if err != nil {
		return false, err
	}

	form := url.Values{}
	form.Set("xsrf_token", tok)
	form.Set("do", "entry_delete")
	form.Set("code", code)

	resp, err := c.postForm(ctx, "leave", "/ajax.php", form)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, siteErr("leave", resp.StatusCode)
	}

	var result struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, wrapErr("leave", err)
	}
	return result.Type == "success", nil
}

// CheckSafety fetches a giveaway detail page and runs the trap heuristic over
// the raw page text.
func (c *Client) CheckSafety(ctx context.Context, code string) (SafetyResult, error) {
	body, err := c.giveawayPage(ctx, "check_safety", code)
	if err != nil {
		return SafetyResult{}, err
	}
	return CheckPageSafety(body), nil
}

// HideGame hides all giveaways for a Steam game on the site.
func (c *Client) HideGame(ctx context.Context, gameID int64) error {
	tok, err := c.xsrf(ctx)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("xsrf_token", tok)
	form.Set("do", "hide_giveaways_by_game_id")
	form.Set("game_id", strconv.FormatInt(gameID, 10))

	resp, err := c.postForm(ctx, "hide_game", "/ajax.php", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return siteErr("hide_game", resp.StatusCode)
	}
	// The site returns an empty body on success.
	return nil
}

// GiveawayGameID scrapes the Steam game id off a giveaway detail page,
// returning nil when the page carries none.
func (c *Client) GiveawayGameID(ctx context.Context, code string) (*int64, error) {
	resp, err := c.get(ctx, "giveaway_game_id", "/giveaway/"+code+"/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, wrapErr("giveaway_game_id", err)
	}

	raw, ok := doc.Find("div.featured__outer-wrap").First().Attr("data-game-id")
	if !ok {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, nil
	}
	return &id, nil
}

// PostComment posts a comment on a giveaway. Success is detected by the
// posted text being echoed back in the response body; this is a weak signal
// inherited from the site's behavior and can produce false results.
func (c *Client) PostComment(ctx context.Context, code, text string) (bool, error) {
	tok, err := c.xsrf(ctx)
	if err != nil {
		return false, err
	}

	form := url.Values{}
	form.Set("xsrf_token", tok)
	form.Set("do", "comment_new")
	form.Set("description", text)
	form.Set("parent_id", "")

	resp, err := c.postForm(ctx, "post_comment", "/giveaway/"+code+"/", form)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, siteErr("post_comment", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, wrapErr("post_comment", err)
	}
	return strings.Contains(string(body), text), nil
}

// UserInfo fetches the home page and recovers the authenticated username and
// points balance from the navigation area.
func (c *Client) UserInfo(ctx context.Context) (UserInfo, error) {
	resp, err := c.get(ctx, "user_info", "/", nil)
	if err != nil {
		return UserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, siteErr("user_info", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return UserInfo{}, wrapErr("user_info", err)
	}
	return parseUserInfo(doc)
}

// Points returns the authenticated user's points balance.
func (c *Client) Points(ctx context.Context) (int, error) {
	info, err := c.UserInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Points, nil
}

// giveawayPage fetches a giveaway detail page and returns its raw body.
// A 404 maps to ErrNotFound.
func (c *Client) giveawayPage(ctx context.Context, op, code string) (string, error) {
	resp, err := c.get(ctx, op, "/giveaway/"+code+"/", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", siteErr(op, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapErr(op, err)
	}
	return string(body), nil
}
