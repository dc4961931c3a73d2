package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Two-Jay/email-auto-sender/internal/dispatch"
	"github.com/Two-Jay/email-auto-sender/internal/store"
)

// RecipientsAPI provides recipient CRUD handlers.
type RecipientsAPI struct {
	store *store.Store
}

// NewRecipientsAPI creates the recipient endpoint handlers.
func NewRecipientsAPI(s *store.Store) *RecipientsAPI {
	return &RecipientsAPI{store: s}
}

// RegisterRoutes registers recipient routes.
func (api *RecipientsAPI) RegisterRoutes(r chi.Router) {
	r.Route("/recipients", func(r chi.Router) {
		r.Get("/", api.HandleListRecipients)
		r.Post("/", api.HandleCreateRecipient)
		r.Post("/bulk", api.HandleCreateRecipientsBulk)
		r.Delete("/", api.HandleDeleteAllRecipients)
		r.Get("/{id}", api.HandleGetRecipient)
		r.Put("/{id}", api.HandleUpdateRecipient)
		r.Delete("/{id}", api.HandleDeleteRecipient)
	})
}

// HandleListRecipients returns all stored recipients.
// GET /api/recipients
func (api *RecipientsAPI) HandleListRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := api.store.ListRecipients()
	if err != nil {
		writeJSONError(w, "failed to list recipients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipients": recipients,
		"total":      len(recipients),
	})
}

// HandleCreateRecipient stores one recipient.
// POST /api/recipients
func (api *RecipientsAPI) HandleCreateRecipient(w http.ResponseWriter, r *http.Request) {
	var req dispatch.Recipient
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !validAddress(req.Address) {
		writeJSONError(w, "email must be a valid address", http.StatusBadRequest)
		return
	}

	created, err := api.store.CreateRecipient(req)
	if err != nil {
		writeJSONError(w, "failed to create recipient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleCreateRecipientsBulk stores several recipients in one call.
// POST /api/recipients/bulk
func (api *RecipientsAPI) HandleCreateRecipientsBulk(w http.ResponseWriter, r *http.Request) {
	var req []dispatch.Recipient
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req) == 0 {
		writeJSONError(w, "at least one recipient is required", http.StatusBadRequest)
		return
	}
	for _, rcpt := range req {
		if !validAddress(rcpt.Address) {
			writeJSONError(w, "email must be a valid address: "+rcpt.Address, http.StatusBadRequest)
			return
		}
	}

	created, err := api.store.CreateRecipients(req)
	if err != nil {
		writeJSONError(w, "failed to create recipients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"recipients": created,
		"total":      len(created),
	})
}

// HandleGetRecipient returns one recipient by id.
// GET /api/recipients/{id}
func (api *RecipientsAPI) HandleGetRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, "invalid recipient id", http.StatusBadRequest)
		return
	}

	recipient, err := api.store.GetRecipient(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "recipient not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to get recipient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recipient)
}

// HandleUpdateRecipient replaces one recipient by id.
// PUT /api/recipients/{id}
func (api *RecipientsAPI) HandleUpdateRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, "invalid recipient id", http.StatusBadRequest)
		return
	}

	var req dispatch.Recipient
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !validAddress(req.Address) {
		writeJSONError(w, "email must be a valid address", http.StatusBadRequest)
		return
	}

	updated, err := api.store.UpdateRecipient(id, req)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "recipient not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to update recipient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDeleteRecipient removes one recipient by id.
// DELETE /api/recipients/{id}
func (api *RecipientsAPI) HandleDeleteRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSONError(w, "invalid recipient id", http.StatusBadRequest)
		return
	}

	err := api.store.DeleteRecipient(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "recipient not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to delete recipient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// HandleDeleteAllRecipients clears the recipient list.
// DELETE /api/recipients
func (api *RecipientsAPI) HandleDeleteAllRecipients(w http.ResponseWriter, r *http.Request) {
	if err := api.store.DeleteAllRecipients(); err != nil {
		writeJSONError(w, "failed to delete recipients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": "all"})
}
