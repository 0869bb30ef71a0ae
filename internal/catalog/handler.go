package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smiledent/clinic-site/internal/querycache"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// MsgLoadFailed is the generic message shown when backend data can't be fetched.
const MsgLoadFailed = "Не удалось загрузить данные. Попробуйте обновить страницу."

// Response is the uniform {data, loading, error} body.
type Response struct {
	Data    any    `json:"data"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Handler exposes read-only catalog endpoints.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the endpoints to an existing router, for sharing /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/doctors", h.ListDoctors)
	r.Get("/services", h.ListServices)
	r.Get("/services/categories", h.ListCategories)
	r.Get("/blog", h.ListBlogPosts)
	r.Get("/blog/{slug}", h.GetBlogPost)
	r.Get("/projects", h.ListProjects)
	r.Get("/promotions", h.ListPromotions)
	r.Get("/faq", h.ListFAQ)
	r.Get("/marketplace/items", h.ListMarketplaceItems)
}

func writeResult[T any](h *Handler, w http.ResponseWriter, what string, res querycache.Result[T]) {
	w.Header().Set("Content-Type", "application/json")
	body := Response{Data: res.Data, Loading: res.Loading}
	if res.Err != nil {
		h.logger.Error("catalog: load failed", "what", what, "error", res.Err)
		body.Data = nil
		body.Error = MsgLoadFailed
		w.WriteHeader(http.StatusBadGateway)
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("catalog: encode response", "what", what, "error", err)
	}
}

// ListDoctors handles GET /api/doctors
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, "doctors", h.repo.Doctors(r.Context()))
}

// ListServices handles GET /api/services?category=
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, "services", h.repo.Services(r.Context(), r.URL.Query().Get("category")))
}

// ListCategories handles GET /api/services/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, "service_categories", h.repo.ServiceCategories(r.Context()))
}

// ListBlogPosts handles GET /api/blog?limit=
func (h *Handler) ListBlogPosts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	writeResult(h, w, "blog_posts", h.repo.BlogPosts(r.Context(), limit))
}

// GetBlogPost handles GET /api/blog/{slug}
func (h *Handler) GetBlogPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.repo.BlogPost(r.Context(), slug)
	if errors.Is(err, ErrNotFound) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(Response{Error: "Статья не найдена"})
		return
	}
	writeResult(h, w, "blog_post", querycache.Result[BlogPost]{Data: post, Err: err})
}

// ListProjects handles GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, "projects", h.repo.Projects(r.Context()))
}

// ListPromotions handles GET /api/promotions
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, "promotions", h.repo.Promotions(r.Context()))
}

// ListFAQ handles GET /api/faq?category=
func (h *Handler) ListFAQ(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, "faq", h.repo.FAQ(r.Context(), r.URL.Query().Get("category")))
}

// ListMarketplaceItems handles GET /api/marketplace/items
func (h *Handler) ListMarketplaceItems(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, "marketplace_items", h.repo.MarketplaceItems(r.Context()))
}
