// Package feeds fetches, parses and validates RSS/Atom feeds.
package feeds

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"

	"github.com/mohammad-safakhou/newsbrief/internal/helpers"
	"github.com/mohammad-safakhou/newsbrief/models"
)

// Kind tags which syntax a parsed document turned out to be.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindRSS
	KindAtom
)

func (k Kind) String() string {
	switch k {
	case KindRSS:
		return "rss"
	case KindAtom:
		return "atom"
	default:
		return "unrecognized"
	}
}

// Document is the parse result of one feed body. Exactly one of RSS or Atom
// is set when Kind is KindRSS or KindAtom.
type Document struct {
	Kind Kind
	RSS  *rss.Feed
	Atom *atom.Feed
}

// Title returns channel.title (RSS) or feed.title (Atom).
func (d Document) Title() string {
	switch d.Kind {
	case KindRSS:
		return strings.TrimSpace(d.RSS.Title)
	case KindAtom:
		return strings.TrimSpace(d.Atom.Title)
	}
	return ""
}

// Len returns the number of items (RSS) or entries (Atom).
func (d Document) Len() int {
	switch d.Kind {
	case KindRSS:
		return len(d.RSS.Items)
	case KindAtom:
		return len(d.Atom.Entries)
	}
	return 0
}

// Parse decides the document kind once and parses it with the matching parser.
// Bodies that are neither RSS nor Atom yield KindUnrecognized without error.
func Parse(body []byte) (Document, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(body)) {
	case gofeed.FeedTypeRSS:
		f, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
		if err != nil {
			return Document{}, fmt.Errorf("parse rss: %w", err)
		}
		return Document{Kind: KindRSS, RSS: f}, nil
	case gofeed.FeedTypeAtom:
		f, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
		if err != nil {
			return Document{}, fmt.Errorf("parse atom: %w", err)
		}
		return Document{Kind: KindAtom, Atom: f}, nil
	default:
		return Document{Kind: KindUnrecognized}, nil
	}
}

// Articles normalizes the document's items into articles attributed to feed.
// Items without a title or link are dropped; summaries are reduced to plain text.
func (d Document) Articles(feed models.FeedRef) []models.Article {
	var out []models.Article
	add := func(title, link, summary string, published *time.Time) {
		title = strings.TrimSpace(title)
		link = strings.TrimSpace(link)
		if title == "" || link == "" {
			return
		}
		out = append(out, models.Article{
			ID:          articleID(feed.ID, published, link),
			Title:       title,
			URL:         link,
			PublishedAt: published,
			Feed:        feed,
			Summary:     helpers.PlainText(summary),
		})
	}

	switch d.Kind {
	case KindRSS:
		for _, it := range d.RSS.Items {
			if it == nil {
				continue
			}
			add(it.Title, rssLink(it), firstNonEmpty(it.Description, it.Content), rssPublished(it))
		}
	case KindAtom:
		for _, e := range d.Atom.Entries {
			if e == nil {
				continue
			}
			add(e.Title, atomLink(e), atomBody(e), atomPublished(e))
		}
	}
	return out
}

func articleID(feedID string, published *time.Time, link string) string {
	if published != nil {
		return feedID + ":" + published.UTC().Format(time.RFC3339)
	}
	return feedID + ":" + link
}

func rssLink(it *rss.Item) string {
	if strings.TrimSpace(it.Link) != "" {
		return it.Link
	}
	// permalink GUIDs double as the item URL
	if it.GUID != nil && it.GUID.IsPermalink != "false" && isHTTPURL(it.GUID.Value) {
		return it.GUID.Value
	}
	return ""
}

func rssPublished(it *rss.Item) *time.Time {
	if t := parseTime(it.PubDate); t != nil {
		return t
	}
	if it.DublinCoreExt != nil {
		for _, raw := range it.DublinCoreExt.Date {
			if t := parseTime(raw); t != nil {
				return t
			}
		}
	}
	return it.PubDateParsed
}

func atomLink(e *atom.Entry) string {
	for _, l := range e.Links {
		if l != nil && l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
	}
	for _, l := range e.Links {
		if l != nil && l.Href != "" {
			return l.Href
		}
	}
	return ""
}

func atomBody(e *atom.Entry) string {
	if strings.TrimSpace(e.Summary) != "" {
		return e.Summary
	}
	if e.Content != nil {
		return e.Content.Value
	}
	return ""
}

func atomPublished(e *atom.Entry) *time.Time {
	if t := parseTime(e.Published); t != nil {
		return t
	}
	if t := parseTime(e.Updated); t != nil {
		return t
	}
	if e.PublishedParsed != nil {
		return e.PublishedParsed
	}
	return e.UpdatedParsed
}

// parseTime coerces a feed timestamp; anything unparseable is nil, never an error.
func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
