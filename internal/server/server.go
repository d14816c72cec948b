package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/trendsage/trendsage/internal/api"
	"github.com/trendsage/trendsage/internal/config"
	"github.com/trendsage/trendsage/internal/feeds"
	"github.com/trendsage/trendsage/internal/images"
	"github.com/trendsage/trendsage/internal/reader"
	"github.com/trendsage/trendsage/internal/session"
	"github.com/trendsage/trendsage/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Backend is the slice of the API client the server needs. *api.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	SubmitAnalysis(ctx context.Context, topic, category string) error
	ListArticles(ctx context.Context, category string) ([]api.Article, error)
	ListHeadlines(ctx context.Context, category string) ([]api.Headline, error)
	SendChatMessage(ctx context.Context, articleID, message string, history []api.ChatMessage) (string, error)
}

// AuthProvider verifies login tokens against the external auth provider.
type AuthProvider interface {
	Verify(ctx context.Context, token string) (*session.Session, error)
}

// Server is the TrendSage web front-end.
type Server struct {
	cfg      *config.Config
	backend  Backend
	cache    *store.Store
	sessions *session.Store
	auth     AuthProvider
	fallback *feeds.Fallback
	reader   *reader.Reader
	jobs     *jobRegistry
	chats    *chatRegistry
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

// New creates a Server. The auth provider may be nil when the session gate
// is disabled in the config.
func New(cfg *config.Config, backend Backend, cache *store.Store, sessions *session.Store, auth AuthProvider, fb *feeds.Fallback, rd *reader.Reader) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":    renderMarkdown,
		"truncate":    truncate,
		"placeholder": images.Placeholder,
		"paragraphs":  paragraphs,
	}

	// Parse base template first, then clone it per page so each page gets
	// its own {{define "content"}} and {{define "title"}}.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{
		"index.html", "job.html", "category.html", "blog.html",
		"chat.html", "reader.html", "pricing.html", "login.html", "notfound.html",
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		cfg:      cfg,
		backend:  backend,
		cache:    cache,
		sessions: sessions,
		auth:     auth,
		fallback: fb,
		reader:   rd,
		jobs:     newJobRegistry(),
		chats:    newChatRegistry(),
		pages:    pages,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.gated(s.handleIndex))
	s.mux.HandleFunc("/search", s.gated(s.handleSearch))
	s.mux.HandleFunc("/search/", s.gated(s.handleJob))
	s.mux.HandleFunc("/category/", s.gated(s.handleCategory))
	s.mux.HandleFunc("/blog/", s.gated(s.handleBlog))
	s.mux.HandleFunc("/chat/", s.gated(s.handleChat))
	s.mux.HandleFunc("/read", s.gated(s.handleRead))
	s.mux.HandleFunc("/pricing", s.handlePricing)
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.handleLogout)
}

// gated wraps a page handler with the session gate. With auth disabled the
// handler runs as-is; otherwise an unauthenticated request is sent to the
// login page.
func (s *Server) gated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth.Enabled && !s.sessions.Authenticated() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Categories"]; !ok {
		data["Categories"] = s.cfg.Categories
	}
	if _, ok := data["ActiveCategory"]; !ok {
		data["ActiveCategory"] = api.CategoryAll
	}
	data["AuthEnabled"] = s.cfg.Auth.Enabled
	data["SignedIn"] = s.sessions.Authenticated()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func (s *Server) renderNotFound(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusNotFound)
	s.render(w, "notfound.html", map[string]any{"Message": message})
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Serve starts the HTTP server on the given port.
func (s *Server) Serve(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("TrendSage listening on http://%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}
