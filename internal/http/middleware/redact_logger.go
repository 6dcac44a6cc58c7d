// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger used in the
// router. It scrubs sensitive material from query strings and header values
// before anything reaches the log stream: SteamGifts session material
// (a leaked PHPSESSID is a full account takeover), plus emails, phone
// numbers and UUID-shaped identifiers. Bodies are never logged, so the
// credentials endpoint's JSON payload is out of reach by construction.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Scrub order matters: session material first, then UUIDs before phones so
// the loose phone pattern cannot eat the digit runs inside a UUID.
var (
	sessionRE = regexp.MustCompile(`(?i)\b(phpsessid|xsrf_token)=[^&;,\s]+`)
	uuidRE    = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE   = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE   = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

func scrub(s string) string {
	if s == "" {
		return s
	}
	s = sessionRE.ReplaceAllString(s, "$1=[REDACTED:session]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// RedactOptions configures extra scrub behavior for RedactingLogger.
// MaskHeaders names additional headers whose values are replaced wholesale
// with "[REDACTED]", case-insensitively, on top of the built-in
// Authorization, Cookie and Set-Cookie masking.
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger logs one structured line per request with scrubbing
// applied to the query string and every header value. The path field is the
// matched route pattern; level is warn for 4xx, error for 5xx, info
// otherwise. The request id is taken from the response header when set, the
// request header as a fallback.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := scrub(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, hide := masked[strings.ToLower(k)]; hide {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = scrub(strings.Join(vv, ", "))
		}

		c.Next()

		rid := c.Writer.Header().Get("X-Request-ID")
		if rid == "" {
			rid = c.GetHeader("X-Request-ID")
		}

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
