// Package clipper extracts a meal description from a recipe web page.
//
// Users can log a meal by pasting a URL instead of typing a description.
// The clipper fetches the page, strips markup noise, and hands the
// remaining text to the generator as if the user had typed it.
package clipper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxDescriptionLen caps the extracted text so a long article doesn't blow
// the generator's prompt budget.
const maxDescriptionLen = 4000

// Clipper fetches and cleans recipe pages.
type Clipper struct {
	client *http.Client
}

// New creates a Clipper with a bounded request timeout.
func New() *Clipper {
	return &Clipper{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Clip fetches the URL and returns its readable text content.
func (c *Clipper) Clip(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("clipper: building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("clipper: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("clipper: fetching %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("clipper: parsing %s: %w", url, err)
	}

	// Remove everything that isn't content.
	doc.Find("script, style, nav, header, footer, iframe, .ads, #ads").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	text := strings.TrimSpace(collapseWhitespace(doc.Find("body").Text()))
	if text == "" {
		return "", fmt.Errorf("clipper: no readable text at %s", url)
	}
	if len(text) > maxDescriptionLen {
		text = text[:maxDescriptionLen]
	}
	return text, nil
}

// collapseWhitespace squeezes runs of whitespace into single spaces.
// Recipe pages are mostly indentation once the markup is stripped.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
