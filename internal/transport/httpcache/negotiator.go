// Package httpcache computes content fingerprints and freshness metadata
// for responses, and short-circuits with 304 when a client validator is
// still valid.
package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Policy controls the Cache-Control directives emitted with a response.
type Policy struct {
	MaxAge               time.Duration
	StaleWhileRevalidate time.Duration
}

// SearchPolicy is the default short positive TTL for list/search responses.
var SearchPolicy = Policy{MaxAge: 5 * time.Second}

// DetailPolicy is the default longer TTL with stale-while-revalidate
// allowance for single-record detail responses.
var DetailPolicy = Policy{MaxAge: 5 * time.Minute, StaleWhileRevalidate: time.Minute}

// Fingerprint computes a strong ETag over the serialized response body.
func Fingerprint(body []byte) string {
	h := sha256.Sum256(body)
	return strconv.Quote(hex.EncodeToString(h[:16]))
}

// DetailFingerprint computes a strong ETag for a single-record view over
// the record's content plus its modification watermark.
func DetailFingerprint(body []byte, lastModified time.Time) string {
	h := sha256.New()
	h.Write(body)
	fmt.Fprintf(h, "|%d", lastModified.UnixMilli())
	return strconv.Quote(hex.EncodeToString(h.Sum(nil)[:16]))
}

// Negotiate writes freshness metadata (ETag, Last-Modified, Cache-Control)
// and reports whether the client's cached copy is still valid. When it
// returns true the 304 status has been written and the caller must not
// send a body.
//
// lastModified may be zero for responses without a single watermark
// (search pages); If-Modified-Since is then ignored.
func Negotiate(w http.ResponseWriter, r *http.Request, etag string, lastModified time.Time, p Policy) bool {
	h := w.Header()
	h.Set("ETag", etag)
	if !lastModified.IsZero() {
		h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	h.Set("Cache-Control", cacheControl(p))

	if matchesETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	if ims := r.Header.Get("If-Modified-Since"); ims != "" && !lastModified.IsZero() {
		if t, err := http.ParseTime(ims); err == nil {
			// HTTP dates have second precision; truncate before comparing.
			if !lastModified.Truncate(time.Second).After(t) {
				w.WriteHeader(http.StatusNotModified)
				return true
			}
		}
	}

	return false
}

func cacheControl(p Policy) string {
	directives := []string{"public", fmt.Sprintf("max-age=%d", int(p.MaxAge.Seconds()))}
	if p.StaleWhileRevalidate > 0 {
		directives = append(directives,
			fmt.Sprintf("stale-while-revalidate=%d", int(p.StaleWhileRevalidate.Seconds())))
	}
	return strings.Join(directives, ", ")
}

// matchesETag checks an If-None-Match header against the current ETag.
// Handles the wildcard and comma-separated validator lists.
func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		// A weak validator still matches a strong one under the weak
		// comparison RFC 9110 prescribes for If-None-Match.
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
