package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/remotestore"
)

type Service interface {
	Get(ctx context.Context, caller remotestore.Caller, path string) (remotestore.StorageObject, io.ReadCloser, error)
	List(ctx context.Context, caller remotestore.Caller, dir string) (remotestore.Listing, error)
	Put(ctx context.Context, caller remotestore.Caller, obj remotestore.PutObject, body io.Reader) (remotestore.StorageObject, error)
	Delete(ctx context.Context, caller remotestore.Caller, path string) error
}

// CORSConfig tunes the cross-origin headers beyond the fixed allow set.
type CORSConfig struct {
	ExposedHeaders []string `mapstructure:"exposed_headers"`
	MaxAge         int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	MaxUploadSize int64 // 0 means unlimited
	CORS          CORSConfig
	Logger        *slog.Logger
}

// Handler serves the remoteStorage HTTP API.
type Handler struct {
	config  HandlerConfig
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:  *config,
		service: service,
		logger:  logger,
	}
}

// Router returns an http.Handler serving /{owner}/{path}. A GET on a path
// with a trailing separator (or on /{owner}/) returns a directory listing.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodPut, http.MethodDelete},
		AllowedHeaders:     []string{"Authorization", "Content-Type", "Origin"},
		ExposedHeaders:     h.config.CORS.ExposedHeaders,
		MaxAge:             h.config.CORS.MaxAge,
		OptionsPassthrough: true,
	}))
	r.Use(CORSHeaders)
	r.Use(BearerToken)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/{owner}", h.handleGet)
	r.Get("/{owner}/*", h.handleGet)
	r.Put("/{owner}/*", h.handlePut)
	r.Delete("/{owner}/*", h.handleDelete)

	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	caller, path, ok := h.target(w, r)
	if !ok {
		return
	}

	if path == "" || strings.HasSuffix(path, "/") {
		h.handleList(w, r, caller, strings.TrimSuffix(path, "/"))
		return
	}

	obj, content, err := h.service.Get(r.Context(), caller, path)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer func() { _ = content.Close() }()

	etag := `"` + obj.ETag + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Type", obj.ContentType)

	if inm := r.Header.Get("If-None-Match"); inm != "" && (inm == "*" || inm == etag || inm == obj.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		h.logger.WarnContext(r.Context(), "write response body", "owner", caller.Owner, "path", path, "error", err)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, caller remotestore.Caller, dir string) {
	listing, err := h.service.List(r.Context(), caller, dir)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	body := make(map[string]int64, len(listing.Entries))
	for _, e := range listing.Entries {
		body[e.Name] = e.LastModified.UnixMilli()
	}

	data, err := json.Marshal(body)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if !listing.LastModified.IsZero() {
		w.Header().Set("Last-Modified", listing.LastModified.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	caller, path, ok := h.target(w, r)
	if !ok {
		return
	}

	body := io.Reader(r.Body)
	if h.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	obj := remotestore.PutObject{
		Path:        path,
		ContentType: r.Header.Get("Content-Type"),
		IfMatch:     r.Header.Get("If-Match"),
	}

	stored, err := h.service.Put(r.Context(), caller, obj, body)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("ETag", `"`+stored.ETag+`"`)
	w.Header().Set("Last-Modified", stored.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	caller, path, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, path); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// target extracts the caller and the canonical object path from the request.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (remotestore.Caller, string, bool) {
	owner, err := url.PathUnescape(chi.URLParam(r, "owner"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_path", "Invalid owner")
		return remotestore.Caller{}, "", false
	}

	path, err := remotestore.CanonicalPath(chi.URLParam(r, "*"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_path", "Invalid path")
		return remotestore.Caller{}, "", false
	}

	return remotestore.Caller{Owner: owner, Token: TokenFromContext(r.Context())}, path, true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	HandleError(w, err)
}
