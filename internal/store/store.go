// Package store persists recipients and templates as flat JSON-array files
// on disk. Each record carries an integer id assigned as max+1. The store is
// deliberately simple: the dataset is small and the files double as a
// human-editable interchange format.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Two-Jay/email-auto-sender/internal/dispatch"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

const (
	recipientsFile = "recipients.json"
	templatesFile  = "templates.json"
)

// Recipient is a stored recipient record.
type Recipient struct {
	ID int `json:"id"`
	dispatch.Recipient
}

// Template is a stored template record.
type Template struct {
	ID int `json:"id"`
	dispatch.Template
}

// Store provides recipient/template CRUD over JSON files in dataDir.
type Store struct {
	dataDir string
	mu      sync.RWMutex
}

// New creates a store rooted at dataDir, creating the directory if needed.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

// ListRecipients returns all recipients. A missing file yields an empty list.
func (s *Store) ListRecipients() ([]Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recipients []Recipient
	if err := s.load(recipientsFile, &recipients); err != nil {
		return nil, err
	}
	if recipients == nil {
		recipients = []Recipient{}
	}
	return recipients, nil
}

// GetRecipient returns the recipient with the given id.
func (s *Store) GetRecipient(id int) (Recipient, error) {
	recipients, err := s.ListRecipients()
	if err != nil {
		return Recipient{}, err
	}
	for _, r := range recipients {
		if r.ID == id {
			return r, nil
		}
	}
	return Recipient{}, ErrNotFound
}

// CreateRecipient appends a recipient and assigns it the next id.
func (s *Store) CreateRecipient(r dispatch.Recipient) (Recipient, error) {
	created, err := s.CreateRecipients([]dispatch.Recipient{r})
	if err != nil {
		return Recipient{}, err
	}
	return created[0], nil
}

// CreateRecipients appends recipients in bulk, assigning consecutive ids.
func (s *Store) CreateRecipients(rcpts []dispatch.Recipient) ([]Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recipients []Recipient
	if err := s.load(recipientsFile, &recipients); err != nil {
		return nil, err
	}

	nextID := maxRecipientID(recipients) + 1
	created := make([]Recipient, 0, len(rcpts))
	for _, r := range rcpts {
		rec := Recipient{ID: nextID, Recipient: r}
		recipients = append(recipients, rec)
		created = append(created, rec)
		nextID++
	}

	if err := s.save(recipientsFile, recipients); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRecipient replaces the recipient with the given id.
func (s *Store) UpdateRecipient(id int, r dispatch.Recipient) (Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recipients []Recipient
	if err := s.load(recipientsFile, &recipients); err != nil {
		return Recipient{}, err
	}
	for i := range recipients {
		if recipients[i].ID == id {
			recipients[i] = Recipient{ID: id, Recipient: r}
			if err := s.save(recipientsFile, recipients); err != nil {
				return Recipient{}, err
			}
			return recipients[i], nil
		}
	}
	return Recipient{}, ErrNotFound
}

// DeleteRecipient removes the recipient with the given id.
func (s *Store) DeleteRecipient(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recipients []Recipient
	if err := s.load(recipientsFile, &recipients); err != nil {
		return err
	}
	filtered := recipients[:0]
	for _, r := range recipients {
		if r.ID != id {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == len(recipients) {
		return ErrNotFound
	}
	return s.save(recipientsFile, filtered)
}

// DeleteAllRecipients clears the recipient list.
func (s *Store) DeleteAllRecipients() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(recipientsFile, []Recipient{})
}

// ListTemplates returns all templates. A missing file yields an empty list.
func (s *Store) ListTemplates() ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var templates []Template
	if err := s.load(templatesFile, &templates); err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []Template{}
	}
	return templates, nil
}

// GetTemplate returns the template with the given id.
func (s *Store) GetTemplate(id int) (Template, error) {
	templates, err := s.ListTemplates()
	if err != nil {
		return Template{}, err
	}
	for _, t := range templates {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, ErrNotFound
}

// CreateTemplate appends a template and assigns it the next id.
func (s *Store) CreateTemplate(t dispatch.Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var templates []Template
	if err := s.load(templatesFile, &templates); err != nil {
		return Template{}, err
	}

	maxID := 0
	for _, existing := range templates {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	created := Template{ID: maxID + 1, Template: t}
	templates = append(templates, created)

	if err := s.save(templatesFile, templates); err != nil {
		return Template{}, err
	}
	return created, nil
}

// UpdateTemplate replaces the template with the given id.
func (s *Store) UpdateTemplate(id int, t dispatch.Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var templates []Template
	if err := s.load(templatesFile, &templates); err != nil {
		return Template{}, err
	}
	for i := range templates {
		if templates[i].ID == id {
			templates[i] = Template{ID: id, Template: t}
			if err := s.save(templatesFile, templates); err != nil {
				return Template{}, err
			}
			return templates[i], nil
		}
	}
	return Template{}, ErrNotFound
}

// DeleteTemplate removes the template with the given id.
func (s *Store) DeleteTemplate(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var templates []Template
	if err := s.load(templatesFile, &templates); err != nil {
		return err
	}
	filtered := templates[:0]
	for _, t := range templates {
		if t.ID != id {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == len(templates) {
		return ErrNotFound
	}
	return s.save(templatesFile, filtered)
}

// load reads a JSON-array file into out; a missing file leaves out empty.
func (s *Store) load(filename string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	return nil
}

// save writes a JSON-array file with indentation so it stays hand-editable.
func (s *Store) save(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filename, err)
	}
	if err := os.WriteFile(filepath.Join(s.dataDir, filename), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}

func maxRecipientID(recipients []Recipient) int {
	maxID := 0
	for _, r := range recipients {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID
}
