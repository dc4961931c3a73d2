package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Two-Jay/email-auto-sender/internal/dispatch"
	"github.com/Two-Jay/email-auto-sender/internal/template"
	"github.com/Two-Jay/email-auto-sender/internal/upload"
)

// Sender is the sending engine the email endpoints delegate to.
type Sender interface {
	SendOne(ctx context.Context, sender dispatch.SenderIdentity, rcpt dispatch.Recipient, tmpl dispatch.Template, cc []string, attachments []string) dispatch.Outcome
	SendBulk(ctx context.Context, sender dispatch.SenderIdentity, recipients []dispatch.Recipient, tmpl dispatch.Template, cc []string, attachments []string) dispatch.BulkResult
	Verify(ctx context.Context, sender dispatch.SenderIdentity) error
}

// EmailAPI provides the send, preview, and validation endpoints.
type EmailAPI struct {
	sender  Sender
	uploads *upload.Service
}

// NewEmailAPI creates the email endpoint handlers.
func NewEmailAPI(sender Sender, uploads *upload.Service) *EmailAPI {
	return &EmailAPI{sender: sender, uploads: uploads}
}

// RegisterRoutes registers email routes.
func (api *EmailAPI) RegisterRoutes(r chi.Router) {
	r.Route("/email", func(r chi.Router) {
		r.Post("/send", api.HandleSend)
		r.Post("/send-bulk", api.HandleSendBulk)
		r.Post("/preview", api.HandlePreview)
		r.Post("/validate-template", api.HandleValidateTemplate)
		r.Post("/test-connection", api.HandleTestConnection)
	})
}

type sendRequest struct {
	Sender      dispatch.SenderIdentity `json:"sender"`
	Recipient   dispatch.Recipient      `json:"recipient"`
	Template    dispatch.Template       `json:"template"`
	CC          []string                `json:"cc"`
	Attachments []string                `json:"attachments"`
}

type bulkSendRequest struct {
	Sender      dispatch.SenderIdentity `json:"sender"`
	Recipients  []dispatch.Recipient    `json:"recipients"`
	Template    dispatch.Template       `json:"template"`
	CC          []string                `json:"cc"`
	Attachments []string                `json:"attachments"`
}

func validateSender(s dispatch.SenderIdentity) string {
	if s.Provider == "" {
		return "sender.provider is required"
	}
	if !validAddress(s.Address) {
		return "sender.email must be a valid address"
	}
	if s.Credential == "" {
		return "sender.password is required"
	}
	return ""
}

func validateTemplate(t dispatch.Template) string {
	if t.Subject == "" {
		return "template.subject is required"
	}
	if t.HTMLBody == "" {
		return "template.html_content is required"
	}
	return ""
}

// resolveAttachments maps upload URLs back to their on-disk paths so clients
// can pass the URL returned by the upload endpoints. Anything else is taken
// as a literal path.
func (api *EmailAPI) resolveAttachments(paths []string) []string {
	if api.uploads == nil {
		return paths
	}
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.HasPrefix(p, api.uploads.URLPrefix()) {
			p = api.uploads.Path(strings.TrimPrefix(p, api.uploads.URLPrefix()))
		}
		resolved = append(resolved, p)
	}
	return resolved
}

// HandleSend sends one message to one recipient.
// POST /api/email/send
func (api *EmailAPI) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateSender(req.Sender); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}
	if !validAddress(req.Recipient.Address) {
		writeJSONError(w, "recipient.email must be a valid address", http.StatusBadRequest)
		return
	}
	if msg := validateTemplate(req.Template); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	outcome := api.sender.SendOne(r.Context(), req.Sender, req.Recipient, req.Template, req.CC, api.resolveAttachments(req.Attachments))
	writeJSON(w, http.StatusOK, outcome)
}

// HandleSendBulk sends one message per recipient, paced in batches. The
// response is a complete summary even when every recipient failed.
// POST /api/email/send-bulk
func (api *EmailAPI) HandleSendBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateSender(req.Sender); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}
	if len(req.Recipients) == 0 {
		writeJSONError(w, "at least one recipient is required", http.StatusBadRequest)
		return
	}
	for _, rcpt := range req.Recipients {
		if !validAddress(rcpt.Address) {
			writeJSONError(w, "recipient email must be a valid address: "+rcpt.Address, http.StatusBadRequest)
			return
		}
	}
	if msg := validateTemplate(req.Template); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	result := api.sender.SendBulk(r.Context(), req.Sender, req.Recipients, req.Template, req.CC, api.resolveAttachments(req.Attachments))
	writeJSON(w, http.StatusOK, result)
}

// HandlePreview renders the template for one recipient without sending.
// POST /api/email/preview
func (api *EmailAPI) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !validAddress(req.Recipient.Address) {
		writeJSONError(w, "recipient.email must be a valid address", http.StatusBadRequest)
		return
	}
	if msg := validateTemplate(req.Template); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipient":    req.Recipient.Address,
		"subject":      template.Render(req.Template.Subject, req.Recipient.Variables),
		"html_content": template.Render(req.Template.HTMLBody, req.Recipient.Variables),
		"cc":           req.CC,
	})
}

type validateTemplateRequest struct {
	Subject   string             `json:"subject"`
	HTMLBody  string             `json:"html_content"`
	Variables template.Variables `json:"variables"`
}

// HandleValidateTemplate reports which placeholders the template references
// and which of them the supplied variables leave unfilled.
// POST /api/email/validate-template
func (api *EmailAPI) HandleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var req validateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Subject placeholders count too; dedup across both fields keeping the
	// subject-first order of appearance.
	combined := req.Subject + "\n" + req.HTMLBody
	required := template.ExtractVariables(combined)
	if required == nil {
		required = []string{}
	}
	_, missing := template.Validate(combined, req.Variables)
	if missing == nil {
		missing = []string{}
	}

	provided := make([]string, 0, len(req.Variables))
	for name := range req.Variables {
		provided = append(provided, name)
	}
	sort.Strings(provided)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":              len(missing) == 0,
		"required_variables": required,
		"missing_variables":  missing,
		"provided_variables": provided,
	})
}

// HandleTestConnection opens and authenticates a relay session without
// sending anything.
// POST /api/email/test-connection
func (api *EmailAPI) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	var sender dispatch.SenderIdentity
	if err := json.NewDecoder(r.Body).Decode(&sender); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateSender(sender); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	if err := api.sender.Verify(r.Context(), sender); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "connection verified",
	})
}
