package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/resilience/circuitbreaker"
	"permit-watch/internal/resilience/retry"
)

const listingRowSelector = "table.listTable tr"
const listingSkipSelector = "#tableHead, .header, .pages"

// ListingOptions configures the declarations listing extractor.
// Year and Month are overrides; zero means "derive from the clock".
type ListingOptions struct {
	URL     string
	Region  string
	Search  string
	Year    int
	Month   int
	Charset string
	Retry   retry.Config
	Now     func() time.Time
}

// Window is one (year, month) pair submitted to the search form.
type Window struct {
	Year  int
	Month time.Month
}

// ListingExtractor POSTs the search form once per month window and maps
// every table row onto entity.ListingFields by position.
type ListingExtractor struct {
	client         *http.Client
	opts           ListingOptions
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewListingExtractor(client *http.Client, opts ListingOptions) *ListingExtractor {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.ListingConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ListingExtractor{
		client:         client,
		opts:           opts,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ListingConfig()),
	}
}

func (l *ListingExtractor) Name() string { return string(entity.KindListing) }

// Windows returns the month windows to query. Without overrides these are
// the previous and the current calendar month. With a year or month
// override there is one window: the override merged over the current date.
func (l *ListingExtractor) Windows() []Window {
	now := l.opts.Now()
	if l.opts.Year != 0 || l.opts.Month != 0 {
		w := Window{Year: now.Year(), Month: now.Month()}
		if l.opts.Year != 0 {
			w.Year = l.opts.Year
		}
		if l.opts.Month != 0 {
			w.Month = time.Month(l.opts.Month)
		}
		return []Window{w}
	}

	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	previous := current.AddDate(0, -1, 0)
	return []Window{
		{Year: previous.Year(), Month: previous.Month()},
		{Year: current.Year(), Month: current.Month()},
	}
}

// Extract queries every window in order. A record seen in an earlier
// window wins over a later duplicate. Any window failing fails the source.
func (l *ListingExtractor) Extract(ctx context.Context) ([]*entity.ListingRecord, error) {
	ctx, span := tracer.Start(ctx, "scraper.listing.Extract")
	defer span.End()

	var records []*entity.ListingRecord
	seen := make(map[string]bool)

	for _, w := range l.Windows() {
		batch, err := resilientCall(ctx, l.circuitBreaker, l.opts.Retry, l.opts.URL, func() ([]*entity.ListingRecord, error) {
			return l.doFetch(ctx, w)
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("listing %d-%02d: %w", w.Year, w.Month, err)
		}

		slog.Debug("listing window fetched",
			slog.Int("year", w.Year),
			slog.Int("month", int(w.Month)),
			slog.Int("rows", len(batch)))

		for _, rec := range batch {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			records = append(records, rec)
		}
	}
	return records, nil
}

// FormValues builds the search form body for one window.
func (l *ListingExtractor) FormValues(w Window) url.Values {
	form := url.Values{}
	form.Set("filter[regob]", l.opts.Region)
	form.Set("filter[date]", strconv.Itoa(w.Year))
	form.Set("filter[date2]", strconv.Itoa(int(w.Month)))
	form.Set("filter[confind]", l.opts.Search)
	return form
}

func (l *ListingExtractor) doFetch(ctx context.Context, w Window) ([]*entity.ListingRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.opts.URL,
		strings.NewReader(l.FormValues(w).Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	body, err = decodeCharset(body, l.opts.Charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrParse, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse HTML: %w", entity.ErrParse, err)
	}
	return ParseListing(doc)
}

// ParseListing maps the rows of table.listTable onto ListingRecords.
// Header and pagination rows are skipped, as are rows without cells.
// Any other row must have exactly len(entity.ListingFields) cells.
func ParseListing(doc *goquery.Document) ([]*entity.ListingRecord, error) {
	if doc.Find("table.listTable").Length() == 0 {
		return nil, fmt.Errorf("%w: table.listTable not found", entity.ErrParse)
	}

	var (
		records []*entity.ListingRecord
		rowErr  error
	)
	doc.Find(listingRowSelector).Not(listingSkipSelector).EachWithBreak(func(i int, row *goquery.Selection) bool {
		tds := row.ChildrenFiltered("td")
		if tds.Length() == 0 {
			return true
		}
		if tds.Length() != len(entity.ListingFields) {
			rowErr = fmt.Errorf("%w: listing row %d has %d cells, want %d",
				entity.ErrParse, i, tds.Length(), len(entity.ListingFields))
			return false
		}

		cells := make([]string, 0, len(entity.ListingFields))
		tds.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cleanText(td.Text()))
		})
		records = append(records, entity.NewListingRecord(cells))
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return records, nil
}
