package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>The Big Story</title></head>
<body>
<nav>Home | About | Contact</nav>
<article>
<h1>The Big Story</h1>
<p>This is the opening paragraph of a long article about something that
matters a great deal to many readers around the world today.</p>
<p>It continues with a second paragraph carrying enough prose for the
extractor to consider this the main content block of the page rather
than navigation or boilerplate around it.</p>
<p>And a third paragraph for good measure, because readability scoring
rewards text-dense regions over short link-heavy ones.</p>
</article>
<footer>Copyright notice and other boilerplate</footer>
</body>
</html>`

func TestExtract(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "TrendSage") {
			t.Errorf("expected TrendSage user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer ts.Close()

	r := New(0)
	doc, err := r.Extract(context.Background(), ts.URL+"/story")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Text, "opening paragraph") {
		t.Errorf("expected article text extracted, got %q", doc.Text)
	}
	if strings.Contains(doc.Text, "Copyright notice") {
		t.Errorf("expected boilerplate removed, got %q", doc.Text)
	}
}

func TestExtractRejectsBadScheme(t *testing.T) {
	r := New(0)
	for _, u := range []string{"ftp://example.com/x", "file:///etc/passwd", "javascript:alert(1)", "not a url"} {
		if _, err := r.Extract(context.Background(), u); err == nil {
			t.Errorf("expected error for %q", u)
		}
	}
}

func TestExtractErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	r := New(0)
	if _, err := r.Extract(context.Background(), ts.URL); err == nil {
		t.Error("expected error for 404 page")
	}
}

func TestExtractEmptyPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer ts.Close()

	r := New(0)
	if _, err := r.Extract(context.Background(), ts.URL); err == nil {
		t.Error("expected error for page with no readable content")
	}
}
