package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/platform/pagination"
	"github.com/partsdesk/api/internal/services"
)

const maxCategoryBodySize = 4 * 1024

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type categoryListResponse struct {
	Categories []categoryPayload `json:"categories"`
}

// CategoryHandlers exposes category CRUD endpoints.
type CategoryHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCategoryHandlers constructs a new CategoryHandlers instance.
func NewCategoryHandlers(authn *auth.Authenticator, catalog services.CatalogService) *CategoryHandlers {
	return &CategoryHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the /categories endpoints.
func (h *CategoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireBearer())
	}
	r.Post("/", h.createCategory)
	r.Get("/", h.listCategories)
	r.Get("/{categoryID}", h.getCategory)
	r.Patch("/{categoryID}", h.updateCategory)
	r.Delete("/{categoryID}", h.deleteCategory)
}

func (h *CategoryHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createCategoryRequest
	if err := decodeJSONBody(r, maxCategoryBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	category, err := h.catalog.CreateCategory(ctx, services.CreateCategoryCommand{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCategoryPayload(category))
}

func (h *CategoryHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	categories, err := h.catalog.ListCategories(ctx, services.CategoryListFilter{
		Pagination: services.Pagination{Limit: params.Limit, Offset: params.Offset},
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := categoryListResponse{Categories: make([]categoryPayload, 0, len(categories))}
	for _, category := range categories {
		payload.Categories = append(payload.Categories, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CategoryHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if categoryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	category, err := h.catalog.GetCategory(ctx, categoryID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CategoryHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if categoryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	var req updateCategoryRequest
	if err := decodeJSONBody(r, maxCategoryBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	category, err := h.catalog.UpdateCategory(ctx, categoryID, services.UpdateCategoryCommand{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CategoryHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	if categoryID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "category id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeleteCategory(ctx, categoryID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	return categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   formatTime(category.CreatedAt),
	}
}
