package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/trendsage/trendsage/internal/api"
	"github.com/trendsage/trendsage/internal/images"
)

const backendAdvisory = "Could not reach the analysis backend. Showing the most recent cached results."

// articleCard is the view model for an article in a grid or detail page.
type articleCard struct {
	ID          string
	Title       string
	Category    string
	Content     string
	CreatedAt   string
	Image       string
	Placeholder string
	Excerpt     string
}

func (s *Server) card(a api.Article) articleCard {
	category := a.Category
	if category == "" {
		category = "Miscellaneous"
	}
	img := images.Resolve(category, a.Title, a.Content, a.ImageURL)
	if a.ID != "" {
		if err := s.cache.SetResolvedImage(a.ID, img); err != nil {
			log.Printf("Saving resolved image for %s: %v", a.ID, err)
		}
	}

	excerpt := a.Content
	if parts := paragraphs(a.Content); len(parts) > 0 {
		excerpt = parts[0]
	}

	return articleCard{
		ID:          a.ID,
		Title:       a.Title,
		Category:    category,
		Content:     a.Content,
		CreatedAt:   a.CreatedAt,
		Image:       img,
		Placeholder: images.Placeholder(category),
		Excerpt:     truncate(excerpt, 200),
	}
}

func (s *Server) cards(articles []api.Article) []articleCard {
	cards := make([]articleCard, 0, len(articles))
	for _, a := range articles {
		cards = append(cards, s.card(a))
	}
	return cards
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.renderNotFound(w, "The page you are looking for does not exist.")
		return
	}
	ctx := r.Context()

	var advisory string
	articles, err := s.backend.ListArticles(ctx, "")
	if err != nil {
		log.Printf("Listing articles: %v", err)
		advisory = backendAdvisory
		articles = s.cachedArticles("")
	} else if err := s.cache.CacheArticles(articles); err != nil {
		log.Printf("Caching articles: %v", err)
	}

	headlines, degraded := s.headlines(ctx, "")

	var flash string
	if r.URL.Query().Get("error") == "empty" {
		flash = "Please enter a search topic."
	}

	s.render(w, "index.html", map[string]any{
		"Cards":             s.cards(articles),
		"Headlines":         headlines,
		"HeadlinesDegraded": degraded,
		"Advisory":          advisory,
		"Flash":             flash,
	})
}

// headlines fetches trend headlines from the backend, falling back to the
// configured RSS feeds only when the backend call fails.
func (s *Server) headlines(ctx context.Context, category string) ([]api.Headline, bool) {
	headlines, err := s.backend.ListHeadlines(ctx, category)
	if err == nil {
		return headlines, false
	}
	log.Printf("Listing headlines: %v", err)
	if s.fallback != nil && s.fallback.Configured(category) {
		return s.fallback.Headlines(category), true
	}
	return nil, true
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	topic := strings.TrimSpace(r.FormValue("topic"))
	category := strings.TrimSpace(r.FormValue("category"))
	if topic == "" {
		http.Redirect(w, r, "/?error=empty", http.StatusFound)
		return
	}

	id, err := s.startJob(topic, category)
	if err != nil {
		log.Printf("Starting analysis for %q: %v", topic, err)
		http.Redirect(w, r, "/?error=empty", http.StatusFound)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/search/%d", id), http.StatusFound)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/search/")
	idPart, action, _ := strings.Cut(path, "/")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		s.renderNotFound(w, "Unknown analysis job.")
		return
	}
	job, ok := s.jobs.get(id)
	if !ok {
		s.renderNotFound(w, "This analysis is no longer available.")
		return
	}

	if action == "cancel" && r.Method == http.MethodPost {
		job.cancel()
		http.Redirect(w, r, fmt.Sprintf("/search/%d", id), http.StatusFound)
		return
	}

	snap := job.ctrl.Snapshot()
	data := map[string]any{
		"JobID":    id,
		"Snap":     snap,
		"State":    string(snap.State),
		"Terminal": snap.State.Terminal(),
		"Cards":    s.cards(snap.Articles),
	}
	if snap.Matched != nil {
		matched := s.card(*snap.Matched)
		data["Matched"] = &matched
	}
	if !snap.State.Terminal() {
		data["RefreshSeconds"] = int(s.cfg.PollInterval().Seconds())
	}
	s.render(w, "job.html", data)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, "/category/")
	category, err := url.PathUnescape(slug)
	if err != nil || category == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	// "All" is the no-filter pseudo-category: it must always yield the
	// unfiltered listing, which is the index page.
	if strings.EqualFold(category, api.CategoryAll) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	category = s.canonicalCategory(category)
	ctx := r.Context()

	var advisory string
	articles, err := s.backend.ListArticles(ctx, category)
	if err != nil {
		log.Printf("Listing articles for %s: %v", category, err)
		advisory = backendAdvisory
		articles = s.cachedArticles(category)
	} else if err := s.cache.CacheArticles(articles); err != nil {
		log.Printf("Caching articles: %v", err)
	}
	articles = filterByCategory(articles, category)

	s.render(w, "category.html", map[string]any{
		"ActiveCategory": category,
		"Cards":          s.cards(articles),
		"Advisory":       advisory,
	})
}

func (s *Server) handleBlog(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/blog/")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	article, advisory := s.findArticle(r.Context(), id)
	if article == nil {
		s.renderNotFound(w, "Blog post not found.")
		return
	}

	card := s.card(*article)
	s.render(w, "blog.html", map[string]any{
		"Card":           card,
		"ActiveCategory": s.canonicalCategory(card.Category),
		"Advisory":       advisory,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/chat/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	article, advisory := s.findArticle(r.Context(), id)
	if article == nil {
		s.renderNotFound(w, "Blog post not found.")
		return
	}

	if action == "send" && r.Method == http.MethodPost {
		s.handleChatSend(w, r, article)
		return
	}

	entries := s.chats.ensureGreeting(article.ID, article.Title)
	s.render(w, "chat.html", map[string]any{
		"Card":           s.card(*article),
		"Messages":       entries,
		"ActiveCategory": s.canonicalCategory(article.Category),
		"Advisory":       advisory,
	})
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request, article *api.Article) {
	message := strings.TrimSpace(r.FormValue("message"))
	chatURL := "/chat/" + url.PathEscape(article.ID)
	if message == "" {
		http.Redirect(w, r, chatURL, http.StatusFound)
		return
	}

	s.chats.ensureGreeting(article.ID, article.Title)
	// History excludes the message being sent.
	history := s.chats.history(article.ID)
	s.chats.append(article.ID, "user", message)

	answer, err := s.backend.SendChatMessage(r.Context(), article.ID, message, history)
	switch {
	case err != nil:
		log.Printf("Chat with %s: %v", article.ID, err)
		s.chats.append(article.ID, "assistant", "I'm sorry, I encountered an error while processing your request. Please try again later.")
	case strings.TrimSpace(answer) == "":
		s.chats.append(article.ID, "assistant", "I'm sorry, I couldn't generate a response.")
	default:
		s.chats.append(article.ID, "assistant", answer)
	}

	http.Redirect(w, r, chatURL, http.StatusFound)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("u")
	if pageURL == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	doc, err := s.reader.Extract(r.Context(), pageURL)
	if err != nil {
		log.Printf("Reader view for %s: %v", pageURL, err)
		s.render(w, "reader.html", map[string]any{
			"SourceURL": pageURL,
			"Error":     "Could not load a readable version of this page. You can open the original instead.",
		})
		return
	}

	s.render(w, "reader.html", map[string]any{
		"SourceURL": pageURL,
		"Doc":       doc,
	})
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	s.render(w, "pricing.html", nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Auth.Enabled || s.sessions.Authenticated() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if r.Method == http.MethodPost {
		token := strings.TrimSpace(r.FormValue("token"))
		if token == "" || s.auth == nil {
			s.render(w, "login.html", map[string]any{"Error": "Enter the access token from your TrendSage account."})
			return
		}
		sess, err := s.auth.Verify(r.Context(), token)
		if err != nil {
			log.Printf("Login: %v", err)
			s.render(w, "login.html", map[string]any{"Error": "Sign-in failed. Check your token and try again."})
			return
		}
		s.sessions.Set(*sess)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	s.render(w, "login.html", nil)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.sessions.Clear()
	http.Redirect(w, r, "/login", http.StatusFound)
}

// findArticle looks an article up in the backend's unfiltered list, falling
// back to the local cache when the backend is unreachable. The advisory is
// non-empty when cached data was served.
func (s *Server) findArticle(ctx context.Context, id string) (*api.Article, string) {
	articles, err := s.backend.ListArticles(ctx, "")
	if err != nil {
		log.Printf("Listing articles: %v", err)
		if cached, cerr := s.cache.CachedArticle(id); cerr == nil && cached != nil {
			a := cached.Article
			return &a, backendAdvisory
		}
		return nil, ""
	}

	if err := s.cache.CacheArticles(articles); err != nil {
		log.Printf("Caching articles: %v", err)
	}
	for i := range articles {
		if articles[i].ID == id {
			return &articles[i], ""
		}
	}
	return nil, ""
}

func (s *Server) cachedArticles(category string) []api.Article {
	cached, err := s.cache.CachedArticles(category)
	if err != nil {
		log.Printf("Reading article cache: %v", err)
		return nil
	}
	articles := make([]api.Article, 0, len(cached))
	for _, c := range cached {
		articles = append(articles, c.Article)
	}
	return articles
}

// canonicalCategory maps a label to its spelling in the configured
// category list, leaving unknown labels untouched.
func (s *Server) canonicalCategory(label string) string {
	for _, c := range s.cfg.Categories {
		if strings.EqualFold(c, label) {
			return c
		}
	}
	return label
}

// filterByCategory keeps only articles whose category equals the label
// case-insensitively, guarding against backends that ignore the filter
// parameter.
func filterByCategory(articles []api.Article, category string) []api.Article {
	if category == "" || category == api.CategoryAll {
		return articles
	}
	var out []api.Article
	for _, a := range articles {
		if strings.EqualFold(a.Category, category) {
			out = append(out, a)
		}
	}
	return out
}
