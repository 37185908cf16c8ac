package ztmfeed

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Client talks to the schedule publisher: it scrapes the archive
// listing page, picks the archive valid for a given day and downloads
// archives. Selection never fails outright; when the listing cannot be
// fetched or no entry covers the day, the default feed URL is used.
type Client struct {
	listingURL string
	defaultURL string
	userAgent  string
	client     *http.Client
	logger     *slog.Logger
}

func New(listingURL, defaultURL, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		listingURL: listingURL,
		defaultURL: defaultURL,
		userAgent:  userAgent,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: logger.With("component", "ztmfeed_client"),
	}
}

// ArchiveURL returns the URL of the archive to ingest for day. Listing
// fetch failures and uncovered days both fall back to the default URL.
func (c *Client) ArchiveURL(ctx context.Context, day time.Time) string {
	names, err := c.listArchives(ctx)
	if err != nil {
		c.logger.Warn("archive listing unavailable, using default feed",
			"error", err,
			"default_url", c.defaultURL,
		)
		return c.defaultURL
	}

	name, ok := SelectForDate(names, day)
	if !ok {
		c.logger.Warn("no archive covers requested day, using default feed",
			"day", day.Format(dateLayout),
			"listed", len(names),
			"default_url", c.defaultURL,
		)
		return c.defaultURL
	}

	url := strings.TrimSuffix(c.listingURL, "/") + "/" + name
	c.logger.Info("selected schedule archive", "name", name, "url", url)
	return url
}

func (c *Client) listArchives(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	names, err := extractListing(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	skipped := 0
	for _, name := range names {
		if _, ok := ParseArchiveName(name); !ok {
			skipped++
			c.logger.Debug("skipping malformed listing entry", "name", name)
		}
	}
	c.logger.Debug("fetched archive listing", "entries", len(names), "malformed", skipped)

	return names, nil
}

// extractListing pulls the filename out of each row of the page's
// second table. The publisher's page carries navigation in the first
// table and the archive index in the second.
func extractListing(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	tables := findElements(doc, "table")
	if len(tables) < 2 {
		return nil, fmt.Errorf("expected at least 2 tables, found %d", len(tables))
	}

	var names []string
	for _, row := range findElements(tables[1], "tr") {
		cells := findElements(row, "td")
		if len(cells) == 0 {
			continue
		}
		if name := strings.TrimSpace(nodeText(cells[0])); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func findElements(n *html.Node, tag string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			found = append(found, node)
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child)
	}
	return found
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

// DownloadArchive fetches a schedule archive and opens it as a zip.
func (c *Client) DownloadArchive(ctx context.Context, url string) (*zip.Reader, []byte, error) {
	start := time.Now()
	c.logger.Info("starting archive download", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open zip: %w", err)
	}

	c.logger.Info("archive download completed",
		"size_mb", fmt.Sprintf("%.2f", float64(len(data))/(1024*1024)),
		"files_in_archive", len(reader.File),
		"total_duration_ms", time.Since(start).Milliseconds(),
	)

	return reader, data, nil
}
