package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"permit-watch/internal/domain/entity"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		rec  entity.Record
		want string
	}{
		{
			name: "feed title",
			rec:  &entity.FeedRecord{ID: "x", Title: "Новий будинок"},
			want: "<b>Новий будинок</b>",
		},
		{
			name: "escapes markup",
			rec:  &entity.FeedRecord{ID: "x", Title: `A & B <script>"q"</script>`},
			want: "<b>A &amp; B &lt;script&gt;&#34;q&#34;&lt;/script&gt;</b>",
		},
		{
			name: "listing composite",
			rec:  &entity.ListingRecord{ID: "1024", Object: "Житловий будинок"},
			want: "<b>1024 Житловий будинок</b>",
		},
		{
			name: "portal composite skips blanks",
			rec:  &entity.PortalRecord{ID: "77", Number: "", Date: "01.02.2024", Title: "Рішення"},
			want: "<b>77 01.02.2024 Рішення</b>",
		},
		{
			name: "empty lines trimmed",
			rec:  &entity.FeedRecord{ID: "x", Title: "first\n\n  \nsecond"},
			want: "<b>first\nsecond</b>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMessage(tt.rec); got != tt.want {
				t.Errorf("FormatMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatMessage_LongTitle(t *testing.T) {
	rec := &entity.FeedRecord{ID: "x", Title: strings.Repeat("я", maxTitleRunes+10)}

	got := FormatMessage(rec)

	if n := len([]rune(got)); n != maxTitleRunes+1+len("<b></b>") {
		t.Errorf("unexpected rendered length %d", n)
	}
	if !strings.HasSuffix(got, "…</b>") {
		t.Errorf("expected ellipsis before closing tag, got %q", got[len(got)-10:])
	}
}

func TestTrimEmptyLines(t *testing.T) {
	if got := trimEmptyLines("\n\na\n \nb\n"); got != "a\nb" {
		t.Errorf("trimEmptyLines() = %q", got)
	}
}

func TestFormatMessage_LongTitleOfEntities(t *testing.T) {
	rec := &entity.FeedRecord{ID: "x", Title: strings.Repeat("&", 2000)}

	got := FormatMessage(rec)

	if n := utf8.RuneCountInString(got); n > 4096 {
		t.Fatalf("rendered message has %d runes, over the 4096 limit", n)
	}
	if c := strings.Count(got, "&amp;"); c != maxTitleRunes/len("&amp;") {
		t.Errorf("expected %d whole entities, got %d", maxTitleRunes/len("&amp;"), c)
	}
	if !strings.HasSuffix(got, "&amp;…</b>") {
		t.Errorf("expected the cut after a whole entity, got suffix %q", got[len(got)-20:])
	}
}
