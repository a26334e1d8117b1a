package fetcher

import (
	"fmt"
	"log"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher implements the Fetcher interface using colly
type CollyFetcher struct {
	userAgent string
	timeout   time.Duration
}

// NewCollyFetcher creates a new CollyFetcher instance
func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	return &CollyFetcher{
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Fetch implements the Fetcher interface. A non-2xx status or a
// transport error is reported as a fetch failure.
func (cf *CollyFetcher) Fetch(url string) (string, error) {
	// A fresh collector per fetch keeps cycles independent of each other
	c := colly.NewCollector(
		colly.UserAgent(cf.userAgent),
	)
	c.SetRequestTimeout(cf.timeout)

	var body string
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("fetch %s: status %d: %w", url, r.StatusCode, err)
		} else {
			fetchErr = fmt.Errorf("fetch %s: %w", url, err)
		}
	})

	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("failed to visit URL: %w", err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fetchErr
	}
	if body == "" {
		return "", fmt.Errorf("fetch %s: empty response body", url)
	}

	log.Printf("Fetched %s (%d bytes)\n", url, len(body))
	return body, nil
}
