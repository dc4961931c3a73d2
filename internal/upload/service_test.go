package upload

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(t.TempDir(), "/uploads/")
	require.NoError(t, err)
	return s
}

func TestSaveImage(t *testing.T) {
	s := newTestService(t)

	saved, err := s.SaveImage("logo.png", strings.NewReader("fake png bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.Filename, "_logo.png"))
	assert.Equal(t, "/uploads/"+saved.Filename, saved.URL)

	data, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	assert.Equal(t, "fake png bytes", string(data))
}

func TestSaveImageRejectsNonImage(t *testing.T) {
	s := newTestService(t)
	_, err := s.SaveImage("script.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSaveAttachmentAllowsAnyExtension(t *testing.T) {
	s := newTestService(t)
	saved, err := s.SaveAttachment("report.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.Filename, "_report.pdf"))
}

func TestListImagesFiltersNonImages(t *testing.T) {
	s := newTestService(t)
	_, err := s.SaveImage("a.png", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = s.SaveAttachment("notes.txt", strings.NewReader("y"))
	require.NoError(t, err)

	images, err := s.ListImages()
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.True(t, strings.HasSuffix(images[0].Filename, "a.png"))
}

func TestDeleteImage(t *testing.T) {
	s := newTestService(t)
	saved, err := s.SaveImage("gone.png", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteImage(saved.Filename))
	assert.ErrorIs(t, s.DeleteImage(saved.Filename), ErrNotFound)
}

func TestPathStripsDirectories(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, s.Path("x.png"), s.Path("../../x.png"))
}

func TestParseRecipientsCSV(t *testing.T) {
	csvData := `email,name,company
alice@example.com,Alice,Acme
,Nobody,Skipped
not-an-email,Bad,Skipped
bob@example.com,Bob,
`
	recipients, err := ParseRecipientsCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, "alice@example.com", recipients[0].Address)
	assert.Equal(t, "Alice", recipients[0].Variables["name"])
	assert.Equal(t, "Acme", recipients[0].Variables["company"])

	assert.Equal(t, "bob@example.com", recipients[1].Address)
	_, hasCompany := recipients[1].Variables["company"]
	assert.False(t, hasCompany, "blank cells do not become variables")
}

func TestParseRecipientsCSVMissingEmailColumn(t *testing.T) {
	_, err := ParseRecipientsCSV(strings.NewReader("name,company\nAlice,Acme\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestParseRecipientsCSVEmpty(t *testing.T) {
	_, err := ParseRecipientsCSV(strings.NewReader(""))
	assert.Error(t, err)
}
