package types

import (
	"bytes"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched HTML page.
type Page struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after any redirects. It is the canonical
	// source URL used for deduplication.
	FinalURL string

	StatusCode int
	Headers    http.Header
	Body       []byte

	FetchDuration time.Duration
	FetchedAt     time.Time

	doc *goquery.Document
}

// Document returns the parsed goquery document, lazily initializing it.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, err
	}
	p.doc = doc
	return doc, nil
}

// IsSuccess returns true if the response status is 2xx.
func (p *Page) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}
