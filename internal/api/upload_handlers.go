package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Two-Jay/email-auto-sender/internal/store"
	"github.com/Two-Jay/email-auto-sender/internal/upload"
)

// maxUploadBytes caps multipart uploads held in memory.
const maxUploadBytes = 10 << 20

// UploadsAPI provides the file upload and CSV import handlers.
type UploadsAPI struct {
	uploads *upload.Service
	store   *store.Store
}

// NewUploadsAPI creates the upload endpoint handlers.
func NewUploadsAPI(uploads *upload.Service, s *store.Store) *UploadsAPI {
	return &UploadsAPI{uploads: uploads, store: s}
}

// RegisterRoutes registers upload routes.
func (api *UploadsAPI) RegisterRoutes(r chi.Router) {
	r.Route("/upload", func(r chi.Router) {
		r.Post("/image", api.HandleUploadImage)
		r.Post("/attachment", api.HandleUploadAttachment)
		r.Get("/images", api.HandleListImages)
		r.Delete("/images/{filename}", api.HandleDeleteImage)
		r.Post("/csv", api.HandleImportCSV)
	})
}

// HandleUploadImage stores an uploaded image for inline embedding.
// POST /api/upload/image
func (api *UploadsAPI) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	saved, err := api.uploads.SaveImage(header.Filename, file)
	if errors.Is(err, upload.ErrUnsupportedType) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to store image", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandleUploadAttachment stores an arbitrary file for later attachment.
// POST /api/upload/attachment
func (api *UploadsAPI) HandleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	saved, err := api.uploads.SaveAttachment(header.Filename, file)
	if err != nil {
		writeJSONError(w, "failed to store attachment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandleListImages returns the stored image uploads.
// GET /api/upload/images
func (api *UploadsAPI) HandleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := api.uploads.ListImages()
	if err != nil {
		writeJSONError(w, "failed to list images", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"images": images,
		"total":  len(images),
	})
}

// HandleDeleteImage removes a stored upload by filename.
// DELETE /api/upload/images/{filename}
func (api *UploadsAPI) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	err := api.uploads.DeleteImage(filename)
	if errors.Is(err, upload.ErrNotFound) {
		writeJSONError(w, "image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to delete image", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": filename})
}

// HandleImportCSV imports recipients from an uploaded CSV file and stores
// them. Rows without a usable address are skipped, not errors.
// POST /api/upload/csv
func (api *UploadsAPI) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	recipients, err := upload.ParseRecipientsCSV(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(recipients) == 0 {
		writeJSONError(w, "no importable rows in CSV", http.StatusBadRequest)
		return
	}

	created, err := api.store.CreateRecipients(recipients)
	if err != nil {
		writeJSONError(w, "failed to store recipients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"imported":   len(created),
		"recipients": created,
	})
}
