package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/circulation/internal/security"
	"github.com/yourorg/circulation/internal/security/middleware"
	"github.com/yourorg/circulation/internal/service"
)

// BookRequest carries the mutable fields of a book.
type BookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// BookHandler exposes catalog CRUD over HTTP.
type BookHandler struct {
	books  *service.BookService
	authz  *security.AuthorizationService
	logger *slog.Logger
}

// NewBookHandler creates a new book handler.
func NewBookHandler(books *service.BookService, authz *security.AuthorizationService, logger *slog.Logger) *BookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookHandler{books: books, authz: authz, logger: logger}
}

// List handles GET /api/books. A title query parameter switches to search.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	if title := r.URL.Query().Get("title"); title != "" {
		books, err := h.books.SearchBooks(r.Context(), title)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"books": books})
		return
	}

	books, err := h.books.ListBooks(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

// Available handles GET /api/books/available.
func (h *BookHandler) Available(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.AvailableBooks(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

// Get handles GET /api/books/{id}.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := h.books.GetBook(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Create handles POST /api/books.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, security.PermManageCatalog) {
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	book, err := h.books.CreateBook(r.Context(), service.BookInput{
		Title:  req.Title,
		Author: req.Author,
		Genre:  req.Genre,
	})
	if err != nil {
		h.logger.Warn("book creation rejected", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// Update handles PUT /api/books/{id}.
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, security.PermManageCatalog) {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	book, err := h.books.UpdateBook(r.Context(), id, service.BookInput{
		Title:  req.Title,
		Author: req.Author,
		Genre:  req.Genre,
	})
	if err != nil {
		if domainStatusKnown(err) {
			writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Delete handles DELETE /api/books/{id}.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, security.PermManageCatalog) {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	if err := h.books.DeleteBook(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) allowed(w http.ResponseWriter, r *http.Request, perm security.Permission) bool {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if err := h.authz.ValidatePermission(security.Role(claims.Role), perm); err != nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}
