package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Capture fetches a page and converts it to idea text. The result carries
// the page title and the markdown body.
func Capture(ctx context.Context, f *Fetcher, c *Converter, rawURL string) (*ConvertResult, error) {
	res, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !usableContentType(res.ContentType) {
		return nil, fmt.Errorf("unsupported content type %q", res.ContentType)
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		pageURL = nil
	}
	return c.Convert(res.Body, pageURL)
}

// usableContentType accepts HTML, XML, and plain text responses. An empty
// Content-Type is left to the parser.
func usableContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "html") ||
		strings.Contains(ct, "xml") ||
		strings.Contains(ct, "text/plain")
}
