package entity

import "time"

// FeedRecord is one item of the RSS feed.
type FeedRecord struct {
	ID        string     `bson:"id" json:"id"`
	Title     string     `bson:"title" json:"title"`
	Content   string     `bson:"content" json:"content"`
	Published time.Time  `bson:"published" json:"published"`
	Author    string     `bson:"author" json:"author"`
	Link      string     `bson:"link" json:"link"`
	Feed      FeedSource `bson:"feed" json:"feed"`
}

// FeedSource describes the channel an item came from.
type FeedSource struct {
	Source string `bson:"source" json:"source"` // URL the feed was fetched from
	Link   string `bson:"link" json:"link"`
	Name   string `bson:"name" json:"name"`
}

func (r *FeedRecord) RecordID() string     { return r.ID }
func (r *FeedRecord) DisplayTitle() string { return r.Title }
func (r *FeedRecord) Kind() RecordKind     { return KindFeed }
