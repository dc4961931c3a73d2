// Package upload manages the local upload directory backing inline images
// and attachments, and parses CSV recipient imports. Uploaded files are
// served under a stable public prefix that the message compiler matches when
// rewriting <img> tags.
package upload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Two-Jay/email-auto-sender/internal/dispatch"
	"github.com/Two-Jay/email-auto-sender/internal/template"
)

// ErrNotFound is returned when a named upload does not exist.
var ErrNotFound = errors.New("file not found")

// ErrUnsupportedType is returned for uploads outside the image allowlist.
var ErrUnsupportedType = errors.New("unsupported file type")

// imageExtensions is the allowlist for image uploads.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// SavedFile describes a stored upload and its public URL.
type SavedFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Path     string `json:"-"`
}

// Service stores and lists uploads under a single directory.
type Service struct {
	dir       string
	urlPrefix string
}

// New creates the service, creating the upload directory if needed.
func New(dir, urlPrefix string) (*Service, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads/"
	}
	return &Service{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir returns the upload directory path.
func (s *Service) Dir() string { return s.dir }

// URLPrefix returns the public URL prefix uploads are served under.
func (s *Service) URLPrefix() string { return s.urlPrefix }

// Path resolves an upload filename to its on-disk path. Only the base name
// is used so callers cannot escape the upload directory.
func (s *Service) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// SaveImage stores an uploaded image under a timestamped unique name.
// Non-image extensions are rejected.
func (s *Service) SaveImage(originalName string, r io.Reader) (SavedFile, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !imageExtensions[ext] {
		return SavedFile{}, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return s.save(originalName, r)
}

// SaveAttachment stores an arbitrary uploaded file for later attachment.
func (s *Service) SaveAttachment(originalName string, r io.Reader) (SavedFile, error) {
	return s.save(originalName, r)
}

func (s *Service) save(originalName string, r io.Reader) (SavedFile, error) {
	filename := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), filepath.Base(originalName))
	path := filepath.Join(s.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return SavedFile{}, fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return SavedFile{}, fmt.Errorf("writing upload: %w", err)
	}
	return SavedFile{Filename: filename, URL: s.urlPrefix + filename, Path: path}, nil
}

// ListImages returns the stored image uploads, sorted by filename.
func (s *Service) ListImages() ([]SavedFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading upload directory: %w", err)
	}

	images := []SavedFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		images = append(images, SavedFile{
			Filename: name,
			URL:      s.urlPrefix + name,
			Path:     filepath.Join(s.dir, name),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Filename < images[j].Filename })
	return images, nil
}

// DeleteImage removes a stored upload by filename.
func (s *Service) DeleteImage(filename string) error {
	path := s.Path(filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat %s: %w", filename, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", filename, err)
	}
	return nil
}

// ParseRecipientsCSV reads a recipient import: a header row that must
// include an "email" column, every other column becoming a merge variable.
// Rows with a blank or syntactically absent address are skipped.
func ParseRecipientsCSV(r io.Reader) ([]dispatch.Recipient, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	emailCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "email") {
			emailCol = i
			break
		}
	}
	if emailCol < 0 {
		return nil, errors.New(`CSV file must have an "email" column`)
	}

	var recipients []dispatch.Recipient
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		email := strings.TrimSpace(row[emailCol])
		if email == "" || !strings.Contains(email, "@") {
			continue
		}

		vars := template.Variables{}
		for i, col := range header {
			if i == emailCol || i >= len(row) {
				continue
			}
			if value := strings.TrimSpace(row[i]); value != "" {
				vars[strings.TrimSpace(col)] = value
			}
		}
		recipients = append(recipients, dispatch.Recipient{Address: email, Variables: vars})
	}
	return recipients, nil
}
