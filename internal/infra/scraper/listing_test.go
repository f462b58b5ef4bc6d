package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/infra/scraper"
)

func fixedNow(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}

func listingPage(rows ...string) string {
	return `<html><body>
<table class="listTable">
  <tr id="tableHead"><th>№</th><th>Регіон</th></tr>
  <tr class="header"><td colspan="11">Декларації</td></tr>
  ` + strings.Join(rows, "\n  ") + `
  <tr class="pages"><td><a href="?p=2">2</a></td></tr>
</table></body></html>`
}

func win(y int, m time.Month) scraper.Window {
	return scraper.Window{Year: y, Month: m}
}

func row(cells ...string) string {
	return "<tr><td>" + strings.Join(cells, "</td><td>") + "</td></tr>"
}

func TestListingExtractor_Windows(t *testing.T) {
	tests := []struct {
		name  string
		now   func() time.Time
		year  int
		month int
		want  []scraper.Window
	}{
		{
			name: "previous and current month",
			now:  fixedNow(2024, time.March, 15),
			want: []scraper.Window{win(2024, time.February), win(2024, time.March)},
		},
		{
			name: "january rolls back to december of the previous year",
			now:  fixedNow(2024, time.January, 3),
			want: []scraper.Window{win(2023, time.December), win(2024, time.January)},
		},
		{
			name: "end of month does not skip february",
			now:  fixedNow(2024, time.March, 31),
			want: []scraper.Window{win(2024, time.February), win(2024, time.March)},
		},
		{
			name:  "month override collapses to a single window",
			now:   fixedNow(2024, time.March, 15),
			month: 7,
			want:  []scraper.Window{win(2024, time.July)},
		},
		{
			name: "year override keeps the current month",
			now:  fixedNow(2024, time.March, 15),
			year: 2022,
			want: []scraper.Window{win(2022, time.March)},
		},
		{
			name:  "month override in january stays in the current year",
			now:   fixedNow(2024, time.January, 10),
			month: 5,
			want:  []scraper.Window{win(2024, time.May)},
		},
		{
			name: "year override in january",
			now:  fixedNow(2024, time.January, 10),
			year: 2023,
			want: []scraper.Window{win(2023, time.January)},
		},
		{
			name:  "both overrides",
			now:   fixedNow(2024, time.March, 15),
			year:  2021,
			month: 11,
			want:  []scraper.Window{win(2021, time.November)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := scraper.NewListingExtractor(http.DefaultClient, scraper.ListingOptions{
				Now: tt.now, Year: tt.year, Month: tt.month,
			})
			assert.Equal(t, tt.want, ex.Windows())
		})
	}
}

func TestListingExtractor_Extract_TwoWindowPosts(t *testing.T) {
	var (
		mu    sync.Mutex
		forms []map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		forms = append(forms, map[string]string{
			"regob":   r.PostForm.Get("filter[regob]"),
			"date":    r.PostForm.Get("filter[date]"),
			"date2":   r.PostForm.Get("filter[date2]"),
			"confind": r.PostForm.Get("filter[confind]"),
		})
		month := r.PostForm.Get("filter[date2]")
		mu.Unlock()

		rows := []string{row("ID"+month, "99", "DOC"+month, "2024-0"+month+"-01", "CAT", "C", "T", "D", "A", "CON", "L")}
		if month == "3" {
			// also listed in the February window
			rows = append(rows, row("ID2", "99", "DOC-dup", "x", "x", "x", "x", "x", "x", "x", "x"))
		}
		_, _ = w.Write([]byte(listingPage(rows...)))
	}))
	defer server.Close()

	ex := scraper.NewListingExtractor(http.DefaultClient, scraper.ListingOptions{
		URL: server.URL, Region: "99", Search: "Житлобуд-2",
		Now: fixedNow(2024, time.March, 15), Retry: noRetry(),
	})

	records, err := ex.Extract(context.Background())
	require.NoError(t, err)

	require.Len(t, forms, 2)
	assert.Equal(t, map[string]string{"regob": "99", "date": "2024", "date2": "2", "confind": "Житлобуд-2"}, forms[0])
	assert.Equal(t, map[string]string{"regob": "99", "date": "2024", "date2": "3", "confind": "Житлобуд-2"}, forms[1])

	require.Len(t, records, 2)
	assert.Equal(t, "ID2", records[0].ID)
	assert.Equal(t, "DOC2", records[0].Document, "first window wins for duplicates")
	assert.Equal(t, "ID3", records[1].ID)
}

func TestParseListing_PositionalMapping(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingPage(
		row("ID1", "99", "DOC1", "2024-01-01", "CAT", "C", "T", "D", "A", "CON", "L"),
	)))
	require.NoError(t, err)

	records, err := scraper.ParseListing(doc)
	require.NoError(t, err)
	require.Len(t, records, 1, "header, pages and th-only rows are skipped")

	rec := records[0]
	assert.Equal(t, "ID1", rec.ID)
	assert.Equal(t, "DOC1", rec.Document)
	assert.Equal(t, "2024-01-01", rec.Object)
	assert.Equal(t, "L", rec.Land)
	assert.Equal(t, "CON", rec.Contractor)
}

func TestParseListing_CollapsesWhitespace(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(listingPage(
		"<tr><td>\n  ID1 </td><td>99</td><td>ДЕ\n 123</td><td>o</td><td>c</td><td>c</td><td>t</td><td>d</td><td>a</td><td>c</td><td>l</td></tr>",
	)))
	records, err := scraper.ParseListing(doc)
	require.NoError(t, err)
	assert.Equal(t, "ID1", records[0].ID)
	assert.Equal(t, "ДЕ 123", records[0].Document)
}

func TestParseListing_ColumnDrift(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(listingPage(
		row("ID1", "99", "DOC1", "2024-01-01", "CAT", "C", "T", "D", "A", "CON", "L"),
		row("ID2", "99", "DOC2", "2024-01-01", "CAT", "C", "T", "D", "A", "CON", "L", "EXTRA"),
	)))

	_, err := scraper.ParseListing(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrParse))
	assert.Contains(t, err.Error(), "12 cells, want 11")
}

func TestParseListing_MissingTable(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body>Сервіс недоступний</body></html>"))
	_, err := scraper.ParseListing(doc)
	assert.True(t, errors.Is(err, entity.ErrParse))
}

func TestParseListing_EmptyResult(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(listingPage()))
	records, err := scraper.ParseListing(doc)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListingExtractor_Extract_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ex := scraper.NewListingExtractor(http.DefaultClient, scraper.ListingOptions{
		URL: server.URL, Now: fixedNow(2024, time.March, 15), Retry: noRetry(),
	})
	_, err := ex.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrFetch))
}
