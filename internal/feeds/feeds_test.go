package feeds

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/trendsage/trendsage/internal/config"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <item>
    <title>First Story</title>
    <link>https://example.com/first</link>
    <description>&lt;p&gt;Some &amp;amp; detailed   text&lt;/p&gt;</description>
    <pubDate>Fri, 28 Aug 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Second Story</title>
    <link>https://example.com/second</link>
  </item>
  <item>
    <title></title>
    <link>https://example.com/untitled</link>
  </item>
</channel>
</rss>`

func TestHeadlinesFromFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer ts.Close()

	f := New([]config.FallbackFeed{{Category: "Tech", URL: ts.URL, Name: "Example"}})
	headlines := f.Headlines("Tech")

	if len(headlines) != 2 {
		t.Fatalf("expected 2 headlines (untitled item skipped), got %d", len(headlines))
	}
	h := headlines[0]
	if h.Title != "First Story" || h.URL != "https://example.com/first" {
		t.Errorf("unexpected headline: %+v", h)
	}
	if h.Source != "Example" {
		t.Errorf("expected configured source name, got %q", h.Source)
	}
	if h.Description != "Some & detailed text" {
		t.Errorf("expected HTML stripped description, got %q", h.Description)
	}
	if h.PublishedAt != "2026-08-28" {
		t.Errorf("expected formatted date, got %q", h.PublishedAt)
	}
}

func TestHeadlinesCategoryFilter(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleRSS))
	}))
	defer ts.Close()

	f := New([]config.FallbackFeed{
		{Category: "Tech", URL: ts.URL},
		{Category: "Sports", URL: ts.URL},
	})

	f.Headlines("sports") // case-insensitive
	if hits != 1 {
		t.Errorf("expected only the sports feed fetched, got %d fetches", hits)
	}

	hits = 0
	f.Headlines("") // unfiltered hits every feed
	if hits != 2 {
		t.Errorf("expected all feeds fetched, got %d", hits)
	}
}

func TestHeadlinesBrokenFeedSkipped(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not xml at all"))
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer good.Close()

	f := New([]config.FallbackFeed{
		{Category: "Tech", URL: bad.URL},
		{Category: "Tech", URL: good.URL},
	})
	headlines := f.Headlines("Tech")
	if len(headlines) != 2 {
		t.Errorf("expected headlines from the healthy feed only, got %d", len(headlines))
	}
}

func TestConfigured(t *testing.T) {
	f := New([]config.FallbackFeed{{Category: "Tech", URL: "https://example.com/rss"}})
	if !f.Configured("Tech") || !f.Configured("tech") || !f.Configured("") {
		t.Error("expected tech and unfiltered to be configured")
	}
	if f.Configured("Sports") {
		t.Error("expected sports to be unconfigured")
	}
	if New(nil).Configured("") {
		t.Error("expected empty feed list to be unconfigured")
	}
}

func TestParseItemFallsBackToGUID(t *testing.T) {
	h := parseItem(&gofeed.Item{Title: "T", GUID: "https://example.com/guid"}, "Src")
	if h == nil || h.URL != "https://example.com/guid" {
		t.Errorf("expected GUID used as link, got %+v", h)
	}

	if parseItem(&gofeed.Item{Title: "No link"}, "Src") != nil {
		t.Error("expected nil for item without any link")
	}
}

func TestParseItemDates(t *testing.T) {
	when := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h := parseItem(&gofeed.Item{Title: "T", Link: "https://e.com", UpdatedParsed: &when}, "Src")
	if h.PublishedAt != "2026-08-01" {
		t.Errorf("expected updated date fallback, got %q", h.PublishedAt)
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"Plain text", "Plain text"},
		{"a &lt;tag&gt; &amp; more", `a <tag> & more`},
		{"", ""},
	}
	for _, tc := range cases {
		if got := stripHTML(tc.in); got != tc.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSourceName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://feeds.bbci.co.uk/news/rss.xml", "Co"},
		{"https://www.sciencedaily.com/rss/all.xml", "Sciencedaily"},
		{"https://arstechnica.com/feed/", "Arstechnica"},
	}
	for _, tc := range cases {
		if got := sourceName(tc.in); got != tc.want {
			t.Errorf("sourceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
