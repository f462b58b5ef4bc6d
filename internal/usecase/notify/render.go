package notify

import (
	"html"
	"strings"
	"unicode/utf8"

	"permit-watch/internal/domain/entity"
)

// maxTitleRunes caps the escaped title. With the bold tags and the
// ellipsis the message stays under Telegram's 4096 character limit, so the
// channel never has to cut through an entity or the closing tag.
const maxTitleRunes = 4000

// FormatMessage renders rec for a chat that understands Telegram HTML:
// the escaped display title in bold, with empty lines removed.
func FormatMessage(rec entity.Record) string {
	text := "<b>" + escapeTitle(rec.DisplayTitle()) + "</b>"
	return trimEmptyLines(text)
}

// escapeTitle HTML-escapes title rune by rune and stops before the escaped
// text would exceed maxTitleRunes.
func escapeTitle(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		esc := html.EscapeString(string(r))
		k := utf8.RuneCountInString(esc)
		if n+k > maxTitleRunes {
			b.WriteString("…")
			break
		}
		b.WriteString(esc)
		n += k
	}
	return b.String()
}

// trimEmptyLines drops lines that are empty or whitespace only.
func trimEmptyLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
