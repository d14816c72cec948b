package images

import (
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// trustedHosts are image source domains allowed for direct display without
// going through the heuristic resolver.
var trustedHosts = map[string]struct{}{
	"images.unsplash.com":  {},
	"plus.unsplash.com":    {},
	"images.pexels.com":    {},
	"cdn.pixabay.com":      {},
	"upload.wikimedia.org": {},
}

// stopWords are tokens ignored during keyword extraction.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "for": {},
	"with": {}, "on": {}, "at": {}, "from": {}, "by": {}, "about": {}, "as": {},
	"an": {}, "a": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "being": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "but": {}, "if": {}, "then": {}, "else": {},
	"when": {}, "up": {}, "down": {}, "out": {}, "that": {}, "this": {},
	"these": {}, "those": {}, "it": {}, "its": {}, "their": {}, "there": {},
	"what": {}, "which": {}, "will": {}, "would": {}, "could": {}, "should": {},
}

type mapping struct {
	key string
	url string
}

type bucket struct {
	mappings    []mapping // order-significant: first match wins
	defaultURL  string
	placeholder string
}

// buckets maps lower-cased category labels to their image tables. The URL
// pools come from the backend's curated per-category images.
var buckets = map[string]bucket{
	"tech": {
		mappings: []mapping{
			{"artificial", "https://images.unsplash.com/photo-1526374965328-7f61d4dc18c5?w=800"},
			{"intelligence", "https://images.unsplash.com/photo-1526374965328-7f61d4dc18c5?w=800"},
			{"robot", "https://images.unsplash.com/photo-1550751827-4bd374c3f58b?w=800"},
			{"software", "https://images.unsplash.com/photo-1518770660439-4636190af475?w=800"},
			{"computer", "https://images.unsplash.com/photo-1518770660439-4636190af475?w=800"},
			{"cyber", "https://images.unsplash.com/photo-1550751827-4bd374c3f58b?w=800"},
			{"crypto", "https://images.unsplash.com/photo-1518546305927-5a555bb7020d?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1518770660439-4636190af475?w=800",
		placeholder: "/static/placeholders/tech.svg",
	},
	"business": {
		mappings: []mapping{
			{"market", "https://images.unsplash.com/photo-1507679799987-c73779587ccf?w=800"},
			{"economy", "https://images.unsplash.com/photo-1486406146926-c627a92ad1ab?w=800"},
			{"startup", "https://images.unsplash.com/photo-1664575602554-2087b04935a5?w=800"},
			{"finance", "https://images.unsplash.com/photo-1559526324-4b87b5e36e44?w=800"},
			{"invest", "https://images.unsplash.com/photo-1518186285589-2f7649de83e0?w=800"},
			{"stock", "https://images.unsplash.com/photo-1620714223084-8fcacc6dfd8d?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1507679799987-c73779587ccf?w=800",
		placeholder: "/static/placeholders/business.svg",
	},
	"health": {
		mappings: []mapping{
			{"health", "https://images.unsplash.com/photo-1505751172876-fa1923c5c528?w=800"},
			{"medical", "https://images.unsplash.com/photo-1505751172876-fa1923c5c528?w=800"},
			{"vaccine", "https://images.unsplash.com/photo-1532938911079-1b06ac7ceec7?w=800"},
			{"hospital", "https://images.unsplash.com/photo-1532938911079-1b06ac7ceec7?w=800"},
			{"fitness", "https://images.unsplash.com/photo-1506126613408-eca07ce68773?w=800"},
			{"mental", "https://images.unsplash.com/photo-1506126613408-eca07ce68773?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1505751172876-fa1923c5c528?w=800",
		placeholder: "/static/placeholders/health.svg",
	},
	"science": {
		mappings: []mapping{
			{"space", "https://images.unsplash.com/photo-1507413245164-6160d8298b31?w=800"},
			{"climate", "https://images.unsplash.com/photo-1564325724739-bae0bd08762c?w=800"},
			{"research", "https://images.unsplash.com/photo-1532094349884-543bc11b234d?w=800"},
			{"physics", "https://images.unsplash.com/photo-1532094349884-543bc11b234d?w=800"},
			{"biology", "https://images.unsplash.com/photo-1564325724739-bae0bd08762c?w=800"},
			{"quantum", "https://images.unsplash.com/photo-1507413245164-6160d8298b31?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1507413245164-6160d8298b31?w=800",
		placeholder: "/static/placeholders/science.svg",
	},
	"sports": {
		mappings: []mapping{
			{"football", "https://images.unsplash.com/photo-1579952363873-27f3bade9f55?w=800"},
			{"basketball", "https://images.unsplash.com/photo-1546519638-68e109498ffc?w=800"},
			{"celtics", "https://images.unsplash.com/photo-1518063319789-7217e6706b04?w=800"},
			{"soccer", "https://images.unsplash.com/photo-1579952363873-27f3bade9f55?w=800"},
			{"tennis", "https://images.unsplash.com/photo-1535131749006-b7f58c99034b?w=800"},
			{"olympic", "https://images.unsplash.com/photo-1461896836934-ffe607ba8211?w=800"},
			{"champion", "https://images.unsplash.com/photo-1461896836934-ffe607ba8211?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1461896836934-ffe607ba8211?w=800",
		placeholder: "/static/placeholders/sports.svg",
	},
	"entertainment": {
		mappings: []mapping{
			{"movie", "https://images.unsplash.com/photo-1603190287605-e6ade32fa852?w=800"},
			{"music", "https://images.unsplash.com/photo-1470229722913-7c0e2dbbafd3?w=800"},
			{"celebrity", "https://images.unsplash.com/photo-1598899134739-24c46f58b8c0?w=800"},
			{"festival", "https://images.unsplash.com/photo-1470229722913-7c0e2dbbafd3?w=800"},
			{"streaming", "https://images.unsplash.com/photo-1603190287605-e6ade32fa852?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1603190287605-e6ade32fa852?w=800",
		placeholder: "/static/placeholders/entertainment.svg",
	},
	"politics": {
		mappings: []mapping{
			{"election", "https://images.unsplash.com/photo-1529107386315-e1a2ed48a620?w=800"},
			{"congress", "https://images.unsplash.com/photo-1541872703-74c5e44368f9?w=800"},
			{"senate", "https://images.unsplash.com/photo-1541872703-74c5e44368f9?w=800"},
			{"president", "https://images.unsplash.com/photo-1529107386315-e1a2ed48a620?w=800"},
			{"policy", "https://images.unsplash.com/photo-1575320181282-9afab399332c?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1529107386315-e1a2ed48a620?w=800",
		placeholder: "/static/placeholders/politics.svg",
	},
	"miscellaneous": {
		mappings: []mapping{
			{"trend", "https://images.unsplash.com/photo-1618005182384-a83a8bd57fbe?w=800"},
			{"culture", "https://images.unsplash.com/photo-1485827404703-89b55fcc595e?w=800"},
		},
		defaultURL:  "https://images.unsplash.com/photo-1507842217343-583bb7270b66?w=800",
		placeholder: "/static/placeholders/misc.svg",
	},
}

// categoryAliases folds label variants into their bucket.
var categoryAliases = map[string]string{
	"technology": "tech",
}

const genericBucket = "miscellaneous"

// Resolve selects one displayable image URL for an article. It is pure and
// deterministic and never returns an empty string. Rules, first match wins:
// a trusted explicit URL is used verbatim; otherwise the first extracted
// keyword whose text overlaps a mapping key (substring in either direction)
// picks that mapping's URL; otherwise the category default; an unknown
// category resolves through the generic bucket.
func Resolve(category, title, content, explicitURL string) string {
	if explicitURL != "" && TrustedHost(explicitURL) {
		return explicitURL
	}

	b := bucketFor(category)
	for _, kw := range ExtractKeywords(title, content) {
		for _, m := range b.mappings {
			if strings.Contains(kw, m.key) || strings.Contains(m.key, kw) {
				return m.url
			}
		}
	}
	return b.defaultURL
}

// Placeholder returns the local placeholder asset for a category, used
// exactly once when an image fails to load at render time.
func Placeholder(category string) string {
	return bucketFor(category).placeholder
}

// TrustedHost reports whether the URL's host is on the image allow-list.
func TrustedHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := trustedHosts[strings.ToLower(u.Hostname())]
	return ok
}

// ExtractKeywords pulls lookup tokens from a title and the first 500
// characters of content: lower-cased, punctuation stripped, whitespace
// split, dropping tokens shorter than 4 characters or stop-listed, then
// deduplicated preserving first-seen order.
func ExtractKeywords(title, content string) []string {
	if runes := []rune(content); len(runes) > 500 {
		content = string(runes[:500])
	}
	text := strings.ToLower(title + " " + content)

	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)

	seen := make(map[string]struct{})
	var keywords []string
	for _, token := range strings.Fields(stripped) {
		if len([]rune(token)) < 4 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}
	return keywords
}

func bucketFor(category string) bucket {
	key := strings.ToLower(strings.TrimSpace(category))
	if alias, ok := categoryAliases[key]; ok {
		key = alias
	}
	b, ok := buckets[key]
	if !ok {
		return buckets[genericBucket]
	}
	return b
}

// Checker validates that an image URL still serves an image. Used by the
// cache refresh command, not by Resolve.
type Checker struct {
	client *http.Client
}

// NewChecker creates a Checker with the given request timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{client: &http.Client{Timeout: timeout}}
}

// Valid reports whether the URL answers a HEAD request with an image
// content type.
func (c *Checker) Valid(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	resp, err := c.client.Head(rawURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK &&
		strings.HasPrefix(resp.Header.Get("Content-Type"), "image/")
}
