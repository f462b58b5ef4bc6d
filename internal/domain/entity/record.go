// Package entity defines the record kinds collected from upstream sources,
// their identifiers, and the domain errors raised while collecting them.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// RecordKind names the source a record was extracted from.
type RecordKind string

const (
	KindFeed    RecordKind = "feed"
	KindListing RecordKind = "listing"
	KindPortal  RecordKind = "portal"
)

// Record is implemented by every record kind.
// RecordID is the sole deduplication key and must be stable across runs.
type Record interface {
	RecordID() string
	DisplayTitle() string
	Kind() RecordKind
}

// FeedRecordID derives the identifier of a feed item from its link.
func FeedRecordID(link string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(link)))
	return hex.EncodeToString(sum[:])
}

// joinNonEmpty joins the trimmed non-empty parts with a single space.
func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
