package service

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	maxPageText  = 8000
	maxPageLinks = 25
)

// PageSummary is the distilled content of an audited page, used to ground
// the audit prompt.
type PageSummary struct {
	URL         string
	Title       string
	Description string
	Text        string
	Links       []string
}

// PageFetcher retrieves and summarizes a target web page.
type PageFetcher struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewPageFetcher creates a page fetcher.
func NewPageFetcher(logger *slog.Logger) *PageFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageFetcher{
		logger:  logger.With("component", "page-fetcher"),
		timeout: 30 * time.Second,
	}
}

// Fetch downloads a page and extracts its title, meta description, visible
// text, and a sample of outgoing links.
func (f *PageFetcher) Fetch(url string) (*PageSummary, error) {
	summary := &PageSummary{URL: url}
	var fetchErr error

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.timeout)

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if summary.Title == "" {
			summary.Title = strings.TrimSpace(e.Text)
		}
	})
	c.OnHTML(`meta[name="description"]`, func(e *colly.HTMLElement) {
		if summary.Description == "" {
			summary.Description = e.Attr("content")
		}
	})
	c.OnHTML("body", func(e *colly.HTMLElement) {
		text := strings.Join(strings.Fields(e.Text), " ")
		if len(text) > maxPageText {
			text = text[:maxPageText]
		}
		summary.Text = text
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(summary.Links) >= maxPageLinks {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link != "" {
			summary.Links = append(summary.Links, link)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch failed (status %d): %w", r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	c.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}

	f.logger.Debug("fetched audit target",
		"url", url,
		"title", summary.Title,
		"text_length", len(summary.Text),
		"links", len(summary.Links),
	)
	return summary, nil
}

// PromptContext renders the summary as grounding context for the audit
// prompt.
func (s *PageSummary) PromptContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PAGE TITLE: %s\n", s.Title)
	if s.Description != "" {
		fmt.Fprintf(&b, "META DESCRIPTION: %s\n", s.Description)
	}
	if len(s.Links) > 0 {
		fmt.Fprintf(&b, "LINK SAMPLE: %s\n", strings.Join(s.Links, ", "))
	}
	fmt.Fprintf(&b, "PAGE TEXT:\n%s\n", s.Text)
	return b.String()
}
