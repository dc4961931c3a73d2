package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Two-Jay/email-auto-sender/internal/dispatch"
	"github.com/Two-Jay/email-auto-sender/internal/store"
)

// TemplatesAPI provides template CRUD handlers.
type TemplatesAPI struct {
	store *store.Store
}

// NewTemplatesAPI creates the template endpoint handlers.
func NewTemplatesAPI(s *store.Store) *TemplatesAPI {
	return &TemplatesAPI{store: s}
}

// RegisterRoutes registers template routes.
func (api *TemplatesAPI) RegisterRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", api.HandleListTemplates)
		r.Post("/", api.HandleCreateTemplate)
		r.Get("/{id}", api.HandleGetTemplate)
		r.Put("/{id}", api.HandleUpdateTemplate)
		r.Delete("/{id}", api.HandleDeleteTemplate)
	})
}

// HandleListTemplates returns all stored templates.
// GET /api/templates
func (api *TemplatesAPI) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := api.store.ListTemplates()
	if err != nil {
		writeJSONError(w, "failed to list templates", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"total":     len(templates),
	})
}

// HandleCreateTemplate stores one template.
// POST /api/templates
func (api *TemplatesAPI) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req dispatch.Template
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateTemplate(req); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	created, err := api.store.CreateTemplate(req)
	if err != nil {
		writeJSONError(w, "failed to create template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleGetTemplate returns one template by id.
// GET /api/templates/{id}
func (api *TemplatesAPI) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, "invalid template id", http.StatusBadRequest)
		return
	}

	tmpl, err := api.store.GetTemplate(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to get template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// HandleUpdateTemplate replaces one template by id.
// PUT /api/templates/{id}
func (api *TemplatesAPI) HandleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, "invalid template id", http.StatusBadRequest)
		return
	}

	var req dispatch.Template
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateTemplate(req); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	updated, err := api.store.UpdateTemplate(id, req)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to update template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteTemplate removes one template by id.
// DELETE /api/templates/{id}
func (api *TemplatesAPI) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, "invalid template id", http.StatusBadRequest)
		return
	}

	err := api.store.DeleteTemplate(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to delete template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}
