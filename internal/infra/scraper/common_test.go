package scraper

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/resilience/retry"
)

func TestDecodeCharset(t *testing.T) {
	raw, err := charmap.Windows1251.NewEncoder().String("Житлобуд")
	require.NoError(t, err)

	out, err := decodeCharset([]byte(raw), "windows-1251")
	require.NoError(t, err)
	assert.Equal(t, "Житлобуд", string(out))

	same, err := decodeCharset([]byte("plain"), "")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(same))

	_, err = decodeCharset([]byte("x"), "no-such-charset")
	assert.Error(t, err)
}

func TestRelabelUTF8(t *testing.T) {
	in := []byte(`<?xml version="1.0" encoding="windows-1251"?><rss/>`)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><rss/>`, string(relabelUTF8(in)))

	noProlog := []byte(`<rss encoding="x"/>`)
	assert.Equal(t, string(noProlog), string(relabelUTF8(noProlog)))
}

func TestClassify(t *testing.T) {
	parse := fmt.Errorf("%w: bad", entity.ErrParse)
	assert.Same(t, parse, classify(parse))

	httpErr := &retry.HTTPError{StatusCode: http.StatusBadGateway, Message: "x"}
	got := classify(fmt.Errorf("max retry attempts (3) exceeded: %w", httpErr))
	assert.True(t, errors.Is(got, entity.ErrFetch))

	var target *retry.HTTPError
	assert.True(t, errors.As(got, &target))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", cleanText("  a\n\tb   c "))
	assert.Equal(t, "", cleanText(strings.Repeat(" ", 4)))
}
