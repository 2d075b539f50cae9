// Package httpapi exposes the library catalog operations over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openshelf/library-service/internal/apperr"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/metrics"
	"github.com/openshelf/library-service/internal/services/authors"
	"github.com/openshelf/library-service/internal/services/books"
	"github.com/openshelf/library-service/internal/services/users"
	"github.com/openshelf/library-service/pkg/logger"
)

// handler bundles HTTP endpoints for the catalog services.
type handler struct {
	books   *books.Service
	authors *authors.Service
	users   *users.Service
	log     *logger.Logger
}

// NewHandler returns a router exposing the catalog REST API.
func NewHandler(bookSvc *books.Service, authorSvc *authors.Service, userSvc *users.Service, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{books: bookSvc, authors: authorSvc, users: userSvc, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/books", h.listBooks).Methods(http.MethodGet)
	r.HandleFunc("/books", h.createBook).Methods(http.MethodPost)
	r.HandleFunc("/books/{id}", h.getBook).Methods(http.MethodGet)
	r.HandleFunc("/books/{id}", h.updateBook).Methods(http.MethodPatch)
	r.HandleFunc("/books/{id}", h.deleteBook).Methods(http.MethodDelete)
	r.HandleFunc("/books/{id}/borrow", h.borrowBook).Methods(http.MethodPost)
	r.HandleFunc("/books/{id}/return", h.returnBook).Methods(http.MethodPost)

	r.HandleFunc("/authors", h.listAuthors).Methods(http.MethodGet)
	r.HandleFunc("/authors", h.createAuthor).Methods(http.MethodPost)
	r.HandleFunc("/authors/{id}", h.getAuthor).Methods(http.MethodGet)
	r.HandleFunc("/authors/{id}", h.updateAuthor).Methods(http.MethodPatch)
	r.HandleFunc("/authors/{id}", h.deleteAuthor).Methods(http.MethodDelete)

	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", h.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", h.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.deleteUser).Methods(http.MethodDelete)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return metrics.InstrumentHandler(r)
}

// --- book endpoints ---------------------------------------------------------

func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	var filter book.Filter
	filter.AuthorID = r.URL.Query().Get("author_id")
	if raw := r.URL.Query().Get("borrowed"); raw != "" {
		borrowed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, apperr.InvalidInput("borrowed must be true or false"))
			return
		}
		filter.Borrowed = &borrowed
	}

	found, err := h.books.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBooks(found))
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.books.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBook(resolved))
}

func (h *handler) createBook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title     string   `json:"title"`
		ISBN      string   `json:"isbn"`
		AuthorIDs []string `json:"authorIds"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	created, err := h.books.Create(r.Context(), books.CreateInput{
		Title:     payload.Title,
		ISBN:      payload.ISBN,
		AuthorIDs: payload.AuthorIDs,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderBook(created))
}

func (h *handler) updateBook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title     *string  `json:"title"`
		ISBN      *string  `json:"isbn"`
		AuthorIDs []string `json:"authorIds"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	updated, err := h.books.Update(r.Context(), mux.Vars(r)["id"], books.UpdateInput{
		Title:     payload.Title,
		ISBN:      payload.ISBN,
		AuthorIDs: payload.AuthorIDs,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBook(updated))
}

func (h *handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.books.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *handler) borrowBook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	resolved, err := h.books.Borrow(r.Context(), mux.Vars(r)["id"], payload.UserID)
	metrics.RecordLoanTransition("borrow", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBook(resolved))
}

func (h *handler) returnBook(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.books.Return(r.Context(), mux.Vars(r)["id"])
	metrics.RecordLoanTransition("return", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderBook(resolved))
}

// --- author endpoints -------------------------------------------------------

func (h *handler) listAuthors(w http.ResponseWriter, r *http.Request) {
	found, err := h.authors.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAuthors(found))
}

func (h *handler) getAuthor(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.authors.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAuthorDetail(resolved))
}

func (h *handler) createAuthor(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	created, err := h.authors.Create(r.Context(), payload.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderAuthor(created))
}

func (h *handler) updateAuthor(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name *string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	updated, err := h.authors.Update(r.Context(), mux.Vars(r)["id"], payload.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAuthor(updated))
}

func (h *handler) deleteAuthor(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.authors.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// --- user endpoints ---------------------------------------------------------

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	found, err := h.users.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderUsers(found))
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	resolved, err := h.users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderUserDetail(resolved))
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	created, err := h.users.Create(r.Context(), payload.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderUser(created))
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.users.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// --- helpers ----------------------------------------------------------------

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidInput, apperr.KindBadRequest:
		status = http.StatusBadRequest
	}

	message := err.Error()
	if kind == apperr.KindInternal {
		// Do not leak store internals to clients.
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			message = appErr.Message
		} else {
			message = "internal error"
		}
		h.log.WithError(err).Error("request failed")
	}

	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  string(kind),
	})
}
