// Package feeds provides best-effort headlines from RSS sources when the
// backend's trends endpoint is unreachable. It never runs when the backend
// call succeeds.
package feeds

import (
	"log"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/trendsage/trendsage/internal/api"
	"github.com/trendsage/trendsage/internal/config"
)

const maxPerFeed = 12

// Fallback parses configured RSS feeds into headline records.
type Fallback struct {
	feeds []config.FallbackFeed
}

// New creates a Fallback over the configured feed list.
func New(feeds []config.FallbackFeed) *Fallback {
	return &Fallback{feeds: feeds}
}

// Configured reports whether any fallback feed exists for the category.
func (f *Fallback) Configured(category string) bool {
	for _, fc := range f.feeds {
		if categoryMatches(fc.Category, category) {
			return true
		}
	}
	return false
}

// Headlines fetches headlines from feeds matching the category ("" or "All"
// means every configured feed). Feeds that fail to parse are logged and
// skipped; the result is whatever could be gathered.
func (f *Fallback) Headlines(category string) []api.Headline {
	parser := gofeed.NewParser()
	var all []api.Headline

	for _, fc := range f.feeds {
		if !categoryMatches(fc.Category, category) {
			continue
		}

		name := fc.Name
		if name == "" {
			name = sourceName(fc.URL)
		}

		feed, err := parser.ParseURL(fc.URL)
		if err != nil {
			log.Printf("Failed to parse fallback feed %s: %v", fc.URL, err)
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if count >= maxPerFeed {
				break
			}
			h := parseItem(item, name)
			if h == nil {
				continue
			}
			all = append(all, *h)
			count++
		}
		log.Printf("Fallback feed %s supplied %d headlines", name, count)
	}

	return all
}

func categoryMatches(feedCategory, requested string) bool {
	if requested == "" || requested == api.CategoryAll {
		return true
	}
	return strings.EqualFold(feedCategory, requested)
}

func parseItem(item *gofeed.Item, source string) *api.Headline {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return nil
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format("2006-01-02")
	}

	var image string
	if item.Image != nil {
		image = item.Image.URL
	}

	return &api.Headline{
		Title:       title,
		Description: stripHTML(item.Description),
		URL:         link,
		Source:      source,
		ImageURL:    image,
		PublishedAt: published,
	}
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	if host == "" {
		return feedURL
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
