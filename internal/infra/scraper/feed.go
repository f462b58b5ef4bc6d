package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/resilience/circuitbreaker"
	"permit-watch/internal/resilience/retry"
)

// FeedOptions configures the feed extractor.
type FeedOptions struct {
	URL string
	// Charset is the WHATWG name of the body encoding, e.g. "windows-1251".
	Charset string
	Retry   retry.Config
}

// FeedExtractor reads the RSS feed and identifies each item by the
// SHA-256 of its link.
type FeedExtractor struct {
	client         *http.Client
	opts           FeedOptions
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewFeedExtractor(client *http.Client, opts FeedOptions) *FeedExtractor {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.FeedConfig()
	}
	return &FeedExtractor{
		client:         client,
		opts:           opts,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedConfig()),
	}
}

func (f *FeedExtractor) Name() string { return string(entity.KindFeed) }

// Extract fetches and parses the feed. Items without a link are skipped
// because they cannot be identified.
func (f *FeedExtractor) Extract(ctx context.Context) ([]*entity.FeedRecord, error) {
	ctx, span := tracer.Start(ctx, "scraper.feed.Extract")
	defer span.End()

	feed, err := resilientCall(ctx, f.circuitBreaker, f.opts.Retry, f.opts.URL, func() (*gofeed.Feed, error) {
		return f.doFetch(ctx)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records := make([]*entity.FeedRecord, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			slog.Debug("feed item without link skipped", slog.String("title", it.Title))
			continue
		}
		records = append(records, toFeedRecord(it, feed, f.opts.URL))
	}
	return records, nil
}

// doFetch performs the actual feed fetch without retry or circuit breaker.
func (f *FeedExtractor) doFetch(ctx context.Context) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	utf8Body, err := decodeCharset(body, f.opts.Charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrParse, err)
	}
	if f.opts.Charset != "" {
		utf8Body = relabelUTF8(utf8Body)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, fmt.Errorf("%w: feed: %w", entity.ErrParse, err)
	}
	return feed, nil
}

func toFeedRecord(it *gofeed.Item, feed *gofeed.Feed, sourceURL string) *entity.FeedRecord {
	link := strings.TrimSpace(it.Link)

	// full content when the feed has it, else the summary
	content := it.Content
	if content == "" {
		content = it.Description
	}

	var published time.Time
	switch {
	case it.PublishedParsed != nil:
		published = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		published = *it.UpdatedParsed
	}

	var author string
	if it.Author != nil {
		author = it.Author.Name
	} else if len(it.Authors) > 0 && it.Authors[0] != nil {
		author = it.Authors[0].Name
	}

	return &entity.FeedRecord{
		ID:        entity.FeedRecordID(link),
		Title:     cleanText(it.Title),
		Content:   content,
		Published: published,
		Author:    author,
		Link:      link,
		Feed: entity.FeedSource{
			Source: sourceURL,
			Link:   feed.Link,
			Name:   feed.Title,
		},
	}
}
