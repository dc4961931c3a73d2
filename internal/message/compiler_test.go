package message

import (
	"encoding/base64"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
const tinyPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(tinyPNGBase64)
	require.NoError(t, err)
	return data
}

func newTestCompiler(t *testing.T) (*Compiler, string) {
	t.Helper()
	dir := t.TempDir()
	return NewCompiler(dir, "/uploads/", "http://localhost:8080"), dir
}

func parseMessage(t *testing.T, raw []byte) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	return msg
}

func TestCompilePlainHTML(t *testing.T) {
	c, _ := newTestCompiler(t)

	raw, err := c.Compile(Message{
		From:     "sender@example.com",
		To:       "rcpt@example.com",
		Subject:  "Hello",
		HTMLBody: "<p>Hi there</p>",
	})
	require.NoError(t, err)

	msg := parseMessage(t, raw)
	assert.Equal(t, "sender@example.com", msg.Header.Get("From"))
	assert.Equal(t, "rcpt@example.com", msg.Header.Get("To"))
	assert.Equal(t, "Hello", msg.Header.Get("Subject"))
	assert.Empty(t, msg.Header.Get("Cc"))
	assert.Contains(t, msg.Header.Get("Content-Type"), "multipart/alternative")
	assert.Equal(t, 1, strings.Count(string(raw), "Content-Type: text/html"))
}

func TestCompileFromDisplayName(t *testing.T) {
	c, _ := newTestCompiler(t)

	raw, err := c.Compile(Message{
		From:     "sender@example.com",
		FromName: "Ops Team",
		To:       "rcpt@example.com",
		CC:       []string{"a@example.com", "b@example.com"},
		Subject:  "Hi",
		HTMLBody: "<p>x</p>",
	})
	require.NoError(t, err)

	msg := parseMessage(t, raw)
	assert.Equal(t, `"Ops Team" <sender@example.com>`, msg.Header.Get("From"))
	assert.Equal(t, "a@example.com, b@example.com", msg.Header.Get("Cc"))
}

func TestCompileWithAttachments(t *testing.T) {
	c, _ := newTestCompiler(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("quarterly numbers"), 0644))

	raw, err := c.Compile(Message{
		From:        "s@example.com",
		To:          "r@example.com",
		Subject:     "Report",
		HTMLBody:    "<p>attached</p>",
		Attachments: []string{path, filepath.Join(dir, "does-not-exist.pdf")},
	})
	require.NoError(t, err)

	doc := string(raw)
	msg := parseMessage(t, raw)
	assert.Contains(t, msg.Header.Get("Content-Type"), "multipart/mixed")
	assert.Equal(t, 1, strings.Count(doc, "Content-Type: text/html"))
	// One attachment part for the existing file, none for the missing one.
	assert.Equal(t, 1, strings.Count(doc, "Content-Disposition: attachment"))
	assert.Contains(t, doc, `filename="report.txt"`)
	assert.NotContains(t, doc, "does-not-exist")
}

func TestCompileWithInlineImage(t *testing.T) {
	c, uploadDir := newTestCompiler(t)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "logo.png"), tinyPNG(t), 0644))

	raw, err := c.Compile(Message{
		From:     "s@example.com",
		To:       "r@example.com",
		Subject:  "Logo",
		HTMLBody: `<p>see</p><img src="/uploads/logo.png">`,
	})
	require.NoError(t, err)

	doc := string(raw)
	msg := parseMessage(t, raw)
	assert.Contains(t, msg.Header.Get("Content-Type"), "multipart/related")
	assert.Contains(t, doc, "Content-Type: image/png")
	assert.Contains(t, doc, "Content-ID: <")
	assert.Contains(t, doc, "Content-Disposition: inline")
}

func TestCompileMixedAndRelatedNesting(t *testing.T) {
	c, uploadDir := newTestCompiler(t)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "pic.png"), tinyPNG(t), 0644))

	attDir := t.TempDir()
	attPath := filepath.Join(attDir, "doc.txt")
	require.NoError(t, os.WriteFile(attPath, []byte("hello"), 0644))

	raw, err := c.Compile(Message{
		From:        "s@example.com",
		To:          "r@example.com",
		Subject:     "Both",
		HTMLBody:    `<img src="/uploads/pic.png">`,
		Attachments: []string{attPath},
	})
	require.NoError(t, err)

	doc := string(raw)
	msg := parseMessage(t, raw)
	assert.Contains(t, msg.Header.Get("Content-Type"), "multipart/mixed")

	// mixed wraps related wraps alternative.
	mixedIdx := strings.Index(doc, "multipart/mixed")
	relatedIdx := strings.Index(doc, "multipart/related")
	altIdx := strings.Index(doc, "multipart/alternative")
	htmlIdx := strings.Index(doc, "text/html")
	assert.True(t, mixedIdx < relatedIdx && relatedIdx < altIdx && altIdx < htmlIdx,
		"expected mixed > related > alternative > html nesting")
}

func TestRewriteMissingUploadLeavesTagUntouched(t *testing.T) {
	c, _ := newTestCompiler(t)

	body := `<img src="/uploads/gone.png" width="100">`
	rewritten, images := c.rewriteInlineImages(body)
	assert.Equal(t, body, rewritten)
	assert.Empty(t, images)
}

func TestRewriteNonLocalSrcUntouched(t *testing.T) {
	c, _ := newTestCompiler(t)

	body := `<img src="https://cdn.example.com/banner.png">`
	rewritten, images := c.rewriteInlineImages(body)
	assert.Equal(t, body, rewritten)
	assert.Empty(t, images)
}

func TestRewriteAbsolutePublicURL(t *testing.T) {
	c, uploadDir := newTestCompiler(t)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "hero.png"), tinyPNG(t), 0644))

	rewritten, images := c.rewriteInlineImages(`<img src="http://localhost:8080/uploads/hero.png">`)
	require.Len(t, images, 1)
	assert.Contains(t, rewritten, "cid:"+images[0].ContentID)
	assert.Equal(t, "png", images[0].Subtype)
}

func TestRewriteDistinctContentIDs(t *testing.T) {
	c, uploadDir := newTestCompiler(t)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "a.png"), tinyPNG(t), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "b.png"), tinyPNG(t), 0644))

	_, images := c.rewriteInlineImages(`<img src="/uploads/a.png"><img src="/uploads/b.png">`)
	require.Len(t, images, 2)
	assert.NotEqual(t, images[0].ContentID, images[1].ContentID)
}

func TestRewriteMergesDimensionsIntoStyle(t *testing.T) {
	c, uploadDir := newTestCompiler(t)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "sized.png"), tinyPNG(t), 0644))

	rewritten, images := c.rewriteInlineImages(
		`<img src="/uploads/sized.png" width="320" height="200" style="border: 0">`)
	require.Len(t, images, 1)
	assert.Contains(t, rewritten, "width: 320px")
	assert.Contains(t, rewritten, "height: 200px")
	assert.Contains(t, rewritten, "border: 0")
	assert.NotContains(t, rewritten, `width="320"`)
	assert.NotContains(t, rewritten, `height="200"`)
}

func TestRewriteAddsStyleWhenAbsent(t *testing.T) {
	c, uploadDir := newTestCompiler(t)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "w.png"), tinyPNG(t), 0644))

	rewritten, _ := c.rewriteInlineImages(`<img src="/uploads/w.png" width="50">`)
	assert.Contains(t, rewritten, `style="width: 50px;"`)
}

func TestRewriteIgnoresPathTraversal(t *testing.T) {
	c, uploadDir := newTestCompiler(t)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "safe.png"), tinyPNG(t), 0644))

	// Base name resolution keeps lookups inside the upload directory.
	_, images := c.rewriteInlineImages(`<img src="/uploads/../../etc/passwd">`)
	assert.Empty(t, images)
}

func TestDetectImageSubtype(t *testing.T) {
	tests := []struct {
		filename string
		data     []byte
		expected string
	}{
		{"photo.jpg", nil, "jpeg"},
		{"photo.JPEG", nil, "jpeg"},
		{"anim.gif", nil, "gif"},
		{"modern.webp", nil, "webp"},
		{"noext", tinyPNG(t), "png"},
		{"unknown.xyz", []byte("not an image"), "png"},
	}
	for _, tt := range tests {
		if got := detectImageSubtype(tt.filename, tt.data); got != tt.expected {
			t.Errorf("detectImageSubtype(%q) = %q, want %q", tt.filename, got, tt.expected)
		}
	}
}
