// Package pipeline runs the scrape, dedup, persist and notify flow.
//
// A Pipeline owns one source: its extractor, its store and the shared
// notifier. Candidates move through three stages (check, store, notify);
// each stage evaluates every candidate independently and collects the
// outcomes into an ordered Batch, so one failing record never aborts its
// siblings. The Runner executes every registered source once per tick and
// keeps one source's failure from affecting the others.
package pipeline
