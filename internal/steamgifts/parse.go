package steamgifts

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	priceRe     = regexp.MustCompile(`\((\d+)P\)`)
	copiesRe    = regexp.MustCompile(`(\d+)\s+Copies`)
	appIDRe     = regexp.MustCompile(`/apps/(\d+)/`)
	subIDRe     = regexp.MustCompile(`/subs/(\d+)/`)
	bgImageRe   = regexp.MustCompile(`background-image:\s*url\((.*?)\)`)
	entryCntRe  = regexp.MustCompile(`([\d,]+)\s+entr`)
	codeInURLRe = regexp.MustCompile(`/giveaway/([A-Za-z0-9]+)/`)
)

// parseGiveawayRow extracts one listing row. It returns false when the row
// carries no giveaway link, which covers decorative wrappers sharing the
// same class.
func parseGiveawayRow(s *goquery.Selection) (ListedGiveaway, bool) {
	var ga ListedGiveaway

	link := s.Find("a.giveaway__heading__name").First()
	href, ok := link.Attr("href")
	if !ok {
		return ga, false
	}
	m := codeInURLRe.FindStringSubmatch(href)
	if m == nil {
		return ga, false
	}
	ga.Code = m[1]
	ga.GameName = strings.TrimSpace(link.Text())
	ga.Copies = 1

	// Price and copy count live in the thin-heading spans next to the name,
	// as "(50P)" and "(5 Copies)".
	s.Find("span.giveaway__heading__thin").Each(func(_ int, thin *goquery.Selection) {
		text := thin.Text()
		if m := priceRe.FindStringSubmatch(text); m != nil {
			ga.Price, _ = strconv.Atoi(m[1])
		}
		if m := copiesRe.FindStringSubmatch(text); m != nil {
			ga.Copies, _ = strconv.Atoi(m[1])
		}
	})

	if ts, ok := s.Find("div.giveaway__columns span[data-timestamp]").First().Attr("data-timestamp"); ok {
		if secs, err := strconv.ParseInt(ts, 10, 64); err == nil {
			t := time.Unix(secs, 0).UTC()
			ga.EndTime = &t
		}
	}

	if m := entryCntRe.FindStringSubmatch(s.Find("div.giveaway__links").Text()); m != nil {
		ga.Entries, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	}

	// The thumbnail background image encodes the Steam app id.
	if style, ok := s.Find("a.giveaway_image_thumbnail, a.giveaway_image_thumbnail_missing").First().Attr("style"); ok {
		if m := bgImageRe.FindStringSubmatch(style); m != nil {
			ga.ThumbnailURL = strings.Trim(m[1], `"'`)
		}
	}
	if ga.ThumbnailURL != "" {
		ga.GameID = steamAppID(ga.ThumbnailURL)
	}
	if ga.GameID == nil {
		// Fall back to the store link on the row itself.
		s.Find(`a[href*="store.steampowered.com"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if id := steamAppID(href); id != nil {
				ga.GameID = id
				return false
			}
			return true
		})
	}

	ga.IsEntered = s.HasClass("is-faded")
	return ga, true
}

// steamAppID extracts a Steam app (or package) id from a store or CDN URL.
func steamAppID(u string) *int64 {
	m := appIDRe.FindStringSubmatch(u)
	if m == nil {
		m = subIDRe.FindStringSubmatch(u)
	}
	if m == nil {
		return nil
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// parseWonRow extracts one row from the won-giveaways history table.
func parseWonRow(s *goquery.Selection) (WonGiveaway, bool) {
	var w WonGiveaway

	link := s.Find("a.table__column__heading").First()
	href, ok := link.Attr("href")
	if !ok {
		return w, false
	}
	m := codeInURLRe.FindStringSubmatch(href)
	if m == nil {
		return w, false
	}
	w.Code = m[1]
	w.GameName = strings.TrimSpace(link.Text())

	if style, ok := s.Find("a.table_image_thumbnail").First().Attr("style"); ok {
		if bm := bgImageRe.FindStringSubmatch(style); bm != nil {
			w.GameID = steamAppID(bm[1])
		}
	}

	if ts, ok := s.Find("span[data-timestamp]").First().Attr("data-timestamp"); ok {
		if secs, err := strconv.ParseInt(ts, 10, 64); err == nil {
			t := time.Unix(secs, 0).UTC()
			w.WonAt = &t
		}
	}

	// A "Received" marker appears once the win is acknowledged.
	w.Received = s.Find("div.table__gift-feedback-received:not(.is-hidden)").Length() > 0

	if key := strings.TrimSpace(s.Find(`span[data-clipboard-text]`).First().AttrOr("data-clipboard-text", "")); key != "" {
		w.SteamKey = &key
	}
	return w, true
}

// parseEnteredRow extracts one row from the entered-giveaways history table.
func parseEnteredRow(s *goquery.Selection) (EnteredGiveaway, bool) {
	var e EnteredGiveaway

	link := s.Find("a.table__column__heading").First()
	href, ok := link.Attr("href")
	if !ok {
		return e, false
	}
	m := codeInURLRe.FindStringSubmatch(href)
	if m == nil {
		return e, false
	}
	e.Code = m[1]

	// The heading text carries the name plus the "(50P)" price suffix.
	heading := strings.TrimSpace(link.Text())
	if pm := priceRe.FindStringSubmatch(heading); pm != nil {
		e.Price, _ = strconv.Atoi(pm[1])
		heading = strings.TrimSpace(priceRe.ReplaceAllString(heading, ""))
	}
	e.GameName = heading

	if style, ok := s.Find("a.table_image_thumbnail").First().Attr("style"); ok {
		if bm := bgImageRe.FindStringSubmatch(style); bm != nil {
			e.GameID = steamAppID(bm[1])
		}
	}

	// First timestamp in the row is the giveaway end, second is the moment
	// of entry.
	stamps := s.Find("span[data-timestamp]")
	if ts, ok := stamps.Eq(0).Attr("data-timestamp"); ok {
		if secs, err := strconv.ParseInt(ts, 10, 64); err == nil {
			t := time.Unix(secs, 0).UTC()
			e.EndTime = &t
		}
	}
	if stamps.Length() > 1 {
		if ts, ok := stamps.Eq(1).Attr("data-timestamp"); ok {
			if secs, err := strconv.ParseInt(ts, 10, 64); err == nil {
				t := time.Unix(secs, 0).UTC()
				e.EnteredAt = &t
			}
		}
	}

	if em := entryCntRe.FindStringSubmatch(s.Text()); em != nil {
		e.Entries, _ = strconv.Atoi(strings.ReplaceAll(em[1], ",", ""))
	}
	return e, true
}

// parseUserInfo recovers the username and points balance from the page nav.
// The username is resolved through three fallbacks because the markup differs
// between desktop and compact layouts: the avatar link, then the profile link
// in the button container, then an ancestor walk up from the points span.
func parseUserInfo(doc *goquery.Document) (UserInfo, error) {
	var info UserInfo

	pointsSpan := doc.Find("span.nav__points").First()
	if pointsSpan.Length() == 0 {
		return info, ErrSessionExpired
	}
	raw := strings.ReplaceAll(strings.TrimSpace(pointsSpan.Text()), ",", "")
	if n, err := strconv.Atoi(raw); err == nil {
		info.Points = n
	}

	if href, ok := doc.Find("a.nav__avatar-outer-wrap").First().Attr("href"); ok {
		info.Username = usernameFromProfileURL(href)
	}
	if info.Username == "" {
		doc.Find("div.nav__button-container a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if u := usernameFromProfileURL(href); u != "" {
				info.Username = u
				return false
			}
			return true
		})
	}
	if info.Username == "" {
		// Last resort: walk up from the points span until an ancestor
		// contains a profile link.
		for node := pointsSpan.Parent(); node.Length() > 0; node = node.Parent() {
			found := ""
			node.Find(`a[href^="/user/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
				href, _ := a.Attr("href")
				if u := usernameFromProfileURL(href); u != "" {
					found = u
					return false
				}
				return true
			})
			if found != "" {
				info.Username = found
				break
			}
		}
	}

	if info.Username == "" {
		return info, ErrSessionExpired
	}
	return info, nil
}

// usernameFromProfileURL pulls the username out of a /user/<name> href.
func usernameFromProfileURL(href string) string {
	if !strings.HasPrefix(href, "/user/") {
		return ""
	}
	name := strings.TrimPrefix(href, "/user/")
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	return name
}
