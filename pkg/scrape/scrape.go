// Package scrape fetches public reference pages and extracts their tables.
package scrape

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-faster/errors"
)

// DefaultGradeURL is the public GPA conversion table.
const DefaultGradeURL = "http://gpa.eng.uci.edu/"

type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// GradeRow is one line of the GPA conversion table. Scales are slash-separated
// breakpoints, e.g. "100/85/70" against "4.0/3.0/2.0".
type GradeRow struct {
	Title     string
	Country   string
	IntlScale string
	USScale   string
}

// IsDefault reports whether the row is a per-country fallback rather than an institution.
func (r GradeRow) IsDefault() bool {
	return strings.Contains(r.Title, "DEFAULT")
}

func ParseGradeTable(r io.Reader) ([]GradeRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}
	var rows []GradeRow
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		title := strings.TrimSpace(tr.Find("td.views-field-title a").First().Text())
		if title == "" {
			return
		}
		rows = append(rows, GradeRow{
			Title:     title,
			Country:   cellText(tr, "td.views-field-field-country"),
			IntlScale: cellText(tr, "td.views-field-field-intl-gpa"),
			USScale:   cellText(tr, "td.views-field-field-us-gpa"),
		})
	})
	return rows, nil
}

// FetchGradeTable downloads and parses the conversion table at url.
func FetchGradeTable(ctx context.Context, f Fetcher, url string) ([]GradeRow, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return ParseGradeTable(body)
}

func cellText(tr *goquery.Selection, selector string) string {
	return strings.TrimSpace(tr.Find(selector).First().Text())
}
