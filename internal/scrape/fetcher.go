package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; webrag/1.0; +https://github.com/webrag)"
	DefaultMaxBytes  = 10 << 20
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// Page is the readable text extracted from one HTML document.
type Page struct {
	URL   string
	Title string
	Text  string
}

// Fetcher downloads pages and reduces them to plain text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %w %d", url, ErrUnexpectedStatus, resp.StatusCode)
	}

	page, err := Extract(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	page.URL = url

	slog.InfoContext(ctx, "page scraped", "url", url, "title", page.Title, "length", len(page.Text))
	return page, nil
}

// skipped subtrees never contribute text
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Nav:      true,
	atom.Aside:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// Extract parses an HTML document and returns its title and visible text,
// one text node per line with blank lines removed.
func Extract(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	page := &Page{Title: findTitle(doc)}
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if line := strings.Join(strings.Fields(n.Data), " "); line != "" {
				lines = append(lines, line)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page.Text = strings.Join(lines, "\n")
	return page, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return strings.TrimSpace(textOf(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
