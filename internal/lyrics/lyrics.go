// Package lyrics resolves song lyrics for a downloaded track. It first tries
// to extract a lyrics block from the video description, and only then falls
// back to a web search and site-specific page scraping. Every network or
// parse failure degrades to "no lyrics found"; the caller never sees an
// error, only absence.
package lyrics

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/lvcoi/tubetag/internal/webclient"
)

const (
	searchTimeout = 10 * time.Second
	pageTimeout   = 15 * time.Second

	// A block is accepted only when it looks like actual lyrics rather than
	// a stray mention of the word.
	minLines = 5
	minChars = 100

	defaultSearchBaseURL = "https://www.google.com/search?q="
)

var (
	markerRe  = regexp.MustCompile(`(?i)\blyrics:?\s`)
	prefixRe  = regexp.MustCompile(`(?i)^lyrics:?\s*`)
	trailerRe = regexp.MustCompile(`(?i)\n{2,}(links|socials|subscribe|copyright|credits|produced by|video by|mixed by|mastered by|music by|album by|uploaded by)`)
)

// Logger receives progress notes from the resolver. Messages are
// informational; scraping failures are reported through it, never as errors.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}

// Resolver finds lyrics for a track.
type Resolver struct {
	client        *http.Client
	log           Logger
	searchBaseURL string
}

func NewResolver(client *http.Client, log Logger) *Resolver {
	if client == nil {
		client = webclient.New(0)
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Resolver{
		client:        client,
		log:           log,
		searchBaseURL: defaultSearchBaseURL,
	}
}

// Resolve returns the lyrics text for the track, or false when none could be
// found. The description is tried first; scraping is a best-effort fallback.
func (r *Resolver) Resolve(ctx context.Context, description, title, artist string) (string, bool) {
	if text, ok := FromDescription(description); ok {
		return text, true
	}
	return r.scrape(ctx, title, artist)
}

// FromDescription extracts a lyrics block from a video description. The block
// starts at a "lyrics:" marker and runs until a blank-line-separated trailer
// keyword (links/socials/subscribe/...) or the end of the text. Short blocks
// are rejected.
func FromDescription(description string) (string, bool) {
	description = strings.ReplaceAll(description, "\r\n", "\n")

	loc := markerRe.FindStringIndex(description)
	if loc == nil {
		return "", false
	}
	block := description[loc[0]:]
	if tail := trailerRe.FindStringIndex(block); tail != nil {
		block = block[:tail[0]]
	}
	block = strings.TrimSpace(prefixRe.ReplaceAllString(strings.TrimSpace(block), ""))

	if strings.Count(block, "\n")+1 <= minLines || len(block) <= minChars {
		return "", false
	}
	return block, true
}

func (r *Resolver) scrape(ctx context.Context, title, artist string) (string, bool) {
	query := title + " lyrics"
	if artist != "" {
		query = title + " " + artist + " lyrics"
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()
	body, err := webclient.Get(searchCtx, r.client, r.searchBaseURL+url.QueryEscape(query))
	if err != nil {
		r.log.Warnf("lyrics search failed: %v", err)
		return "", false
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		r.log.Warnf("parsing search results: %v", err)
		return "", false
	}

	pageURL, site := pickLyricsPage(collectHrefs(doc))
	if pageURL == "" {
		r.log.Warnf("no known lyrics site in search results for %q", query)
		return "", false
	}

	pageCtx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()
	pageBody, err := webclient.Get(pageCtx, r.client, pageURL)
	if err != nil {
		r.log.Warnf("fetching lyrics page %s: %v", pageURL, err)
		return "", false
	}
	pageDoc, err := html.Parse(strings.NewReader(string(pageBody)))
	if err != nil {
		r.log.Warnf("parsing lyrics page %s: %v", pageURL, err)
		return "", false
	}

	text := strings.TrimSpace(site.extract(pageDoc))
	if len(text) <= minChars {
		r.log.Debugf("lyrics page %s yielded no substantial content", pageURL)
		return "", false
	}
	return text, true
}

// pickLyricsPage selects, in fixed site priority order, the first search
// result link that points at a known lyrics site and mentions lyrics in its
// path. Search-engine redirect wrappers are unwrapped.
func pickLyricsPage(hrefs []string) (string, *site) {
	for i := range sites {
		s := &sites[i]
		for _, href := range hrefs {
			if !strings.Contains(href, s.domain) || !strings.Contains(href, "lyrics") {
				continue
			}
			return unwrapRedirect(href), s
		}
	}
	return "", nil
}

// unwrapRedirect normalizes the /url?q=<target>&sa=... wrapper that search
// result links often carry.
func unwrapRedirect(href string) string {
	if idx := strings.Index(href, "/url?q="); idx >= 0 {
		href = href[idx+len("/url?q="):]
		if amp := strings.Index(href, "&sa="); amp >= 0 {
			href = href[:amp]
		}
		if unescaped, err := url.QueryUnescape(href); err == nil {
			href = unescaped
		}
	}
	return href
}

func collectHrefs(doc *html.Node) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); href != "" {
				hrefs = append(hrefs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs
}
