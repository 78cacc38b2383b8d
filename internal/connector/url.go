// Package connector turns external postings into raw leads.
package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/yangwenmai/leadsniper/internal/apperr"
	"github.com/yangwenmai/leadsniper/internal/model"
)

const (
	maxTextLength = 15000
	// minTextLength is the minimum content length to accept as a valid extraction.
	// Pages returning less than this are likely login walls, cookie walls, or empty pages.
	minTextLength = 100
	// maxRetries is the number of fetch attempts before giving up.
	maxRetries = 3
	// maxBodySize is the maximum HTTP response body size (5MB).
	maxBodySize = 5 * 1024 * 1024
)

// URLSource fetches a posting page and turns it into a RawLead using
// go-readability for the body and goquery for page metadata.
type URLSource struct {
	client  *http.Client
	backoff time.Duration
}

// NewURLSource creates a URL connector with the given request timeout.
func NewURLSource(timeout time.Duration) *URLSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &URLSource{
		client:  &http.Client{Timeout: timeout},
		backoff: 2 * time.Second,
	}
}

// statusError is a non-200 response.
type statusError struct {
	StatusCode int
	URL        string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Fetch downloads url and builds a lead from it, retrying transient failures.
// source overrides the source label derived from the host.
func (s *URLSource) Fetch(ctx context.Context, url, source string) (model.RawLead, error) {
	parsed, err := nurl.Parse(url)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return model.RawLead{}, apperr.Validation(fmt.Sprintf("invalid url %q", url))
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * s.backoff
			select {
			case <-ctx.Done():
				return model.RawLead{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		lead, err := s.fetchOnce(ctx, parsed)
		if err == nil {
			if source != "" {
				lead.Source = source
			}
			return lead, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return model.RawLead{}, ctx.Err()
		}
		// Client errors will not change on retry.
		var se *statusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError && se.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return model.RawLead{}, apperr.Unavailable("fetch "+url, lastErr)
}

func (s *URLSource) fetchOnce(ctx context.Context, u *nurl.URL) (model.RawLead, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.RawLead{}, fmt.Errorf("create request: %w", err)
	}

	// Use a realistic browser User-Agent to avoid being blocked by sites.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.RawLead{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.RawLead{}, &statusError{StatusCode: resp.StatusCode, URL: u.String()}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.RawLead{}, fmt.Errorf("read body: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return model.RawLead{}, fmt.Errorf("readability: %w", err)
	}

	text := normalizeText(article.TextContent)
	if n := utf8.RuneCountInString(text); n < minTextLength {
		return model.RawLead{}, fmt.Errorf("extracted content too short (%d chars), possibly blocked or empty page", n)
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		runes := []rune(text)
		text = string(runes[:maxTextLength]) + "\n... [truncated]"
	}

	meta, err := readMeta(body)
	if err != nil {
		return model.RawLead{}, fmt.Errorf("parse meta: %w", err)
	}

	lead := model.RawLead{
		Source:   sourceFromHost(u.Hostname()),
		Platform: meta.siteName,
		Title:    meta.title,
		Content:  text,
		Author:   firstNonEmpty(article.Byline, meta.author),
		URL:      u.String(),
	}
	if lead.Platform == "" {
		lead.Platform = lead.Source
	}
	if article.PublishedTime != nil && !article.PublishedTime.IsZero() {
		lead.PostedAt = article.PublishedTime.Format(time.RFC3339)
	} else {
		lead.PostedAt = meta.published
	}
	if strings.HasPrefix(u.Path, "/r/") {
		if parts := strings.SplitN(strings.TrimPrefix(u.Path, "/r/"), "/", 2); parts[0] != "" {
			lead.Subreddit = parts[0]
		}
	}
	return lead, nil
}

type pageMeta struct {
	title, siteName, author, published string
}

func readMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, err
	}
	attr := func(selector string) string {
		return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
	}
	return pageMeta{
		title:     firstNonEmpty(attr(`meta[property="og:title"]`), strings.TrimSpace(doc.Find("title").First().Text())),
		siteName:  attr(`meta[property="og:site_name"]`),
		author:    firstNonEmpty(attr(`meta[name="author"]`), attr(`meta[property="article:author"]`)),
		published: attr(`meta[property="article:published_time"]`),
	}, nil
}

// sourceFromHost maps a host to a short source label, e.g. www.reddit.com -> reddit.
func sourceFromHost(host string) string {
	if net.ParseIP(host) != nil {
		return "web"
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return host
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
