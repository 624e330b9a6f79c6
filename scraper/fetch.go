// scraper/fetch.go
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

const maxBodySize = 16 << 20

// Fetcher performs the GETs adapters need over a shared Doer.
type Fetcher struct {
	doer      Doer
	userAgent string
}

func NewFetcher(doer Doer, userAgent string) *Fetcher {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Fetcher{doer: doer, userAgent: userAgent}
}

// GetBody downloads url and returns the body. Non-2xx statuses and transport
// failures come back as *NetworkError.
func (f *Fetcher) GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.doer.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32<<10))
		return nil, &NetworkError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	return body, nil
}

// GetJSON decodes the response body of url into v.
func (f *Fetcher) GetJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	if _, ok := headers["Accept"]; !ok {
		headers = withHeader(headers, "Accept", "application/json")
	}
	body, err := f.GetBody(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}
	return nil
}

// GetDocument fetches url and parses it as HTML.
func (f *Fetcher) GetDocument(ctx context.Context, url string, headers map[string]string) (*goquery.Document, error) {
	body, err := f.GetBody(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}
	return doc, nil
}

func withHeader(h map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for hk, hv := range h {
		out[hk] = hv
	}
	out[k] = v
	return out
}
