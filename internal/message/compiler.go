// Package message builds wire-ready MIME documents from rendered subject and
// HTML body content. Locally-uploaded images referenced by <img> tags are
// embedded as inline CID parts, and file attachments are carried as base64
// parts under a multipart/mixed container.
package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Compiler assembles complete email documents. It only ever reads from the
// upload directory; it never writes to disk or the network.
type Compiler struct {
	uploadDir       string
	uploadURLPrefix string
	publicBaseURL   string
}

// NewCompiler creates a compiler that resolves local-upload image references
// against uploadDir. uploadURLPrefix is the public path uploads are served
// under (default /uploads/); publicBaseURL optionally matches absolute URLs
// of the same uploads (e.g. http://localhost:8080).
func NewCompiler(uploadDir, uploadURLPrefix, publicBaseURL string) *Compiler {
	if uploadURLPrefix == "" {
		uploadURLPrefix = "/uploads/"
	}
	return &Compiler{
		uploadDir:       uploadDir,
		uploadURLPrefix: uploadURLPrefix,
		publicBaseURL:   publicBaseURL,
	}
}

// Message is the input to Compile: already-rendered content plus addressing.
type Message struct {
	From        string
	FromName    string
	To          string
	CC          []string
	Subject     string
	HTMLBody    string
	Attachments []string // filesystem paths; missing files are skipped
}

// attachment is a file read into memory during compilation.
type attachment struct {
	filename    string
	contentType string
	data        []byte
}

// Compile produces the full RFC 5322 document for msg. The structure depends
// on what is present: multipart/mixed wraps everything when attachments
// exist, multipart/related wraps the body when images were embedded, and the
// HTML always sits inside a multipart/alternative container.
func (c *Compiler) Compile(msg Message) ([]byte, error) {
	htmlBody, images := c.rewriteInlineImages(msg.HTMLBody)
	attachments := loadAttachments(msg.Attachments)

	var buf bytes.Buffer
	c.writeHeaders(&buf, msg)

	switch {
	case len(attachments) > 0:
		mixed := newBoundary("mixed")
		fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", mixed)
		fmt.Fprintf(&buf, "--%s\r\n", mixed)
		writeBody(&buf, htmlBody, images)
		for _, att := range attachments {
			writeAttachmentPart(&buf, mixed, att)
		}
		fmt.Fprintf(&buf, "--%s--\r\n", mixed)
	default:
		writeBody(&buf, htmlBody, images)
	}

	return buf.Bytes(), nil
}

// writeHeaders emits the top-level message headers up to Content-Type.
func (c *Compiler) writeHeaders(buf *bytes.Buffer, msg Message) {
	from := mail.Address{Name: msg.FromName, Address: msg.From}
	if msg.FromName == "" {
		fmt.Fprintf(buf, "From: %s\r\n", msg.From)
	} else {
		fmt.Fprintf(buf, "From: %s\r\n", from.String())
	}
	fmt.Fprintf(buf, "To: %s\r\n", msg.To)
	if len(msg.CC) > 0 {
		fmt.Fprintf(buf, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(buf, "Message-ID: <%s@mailer>\r\n", uuid.New().String())
	buf.WriteString("MIME-Version: 1.0\r\n")
}

// writeBody emits the related-or-alternative section holding the HTML part
// and any embedded images. When called under multipart/mixed the caller has
// already written the opening boundary line.
func writeBody(buf *bytes.Buffer, htmlBody string, images []EmbeddedImage) {
	if len(images) == 0 {
		writeAlternative(buf, htmlBody)
		return
	}

	related := newBoundary("rel")
	fmt.Fprintf(buf, "Content-Type: multipart/related; boundary=\"%s\"\r\n\r\n", related)
	fmt.Fprintf(buf, "--%s\r\n", related)
	writeAlternative(buf, htmlBody)
	for _, img := range images {
		writeInlineImagePart(buf, related, img)
	}
	fmt.Fprintf(buf, "--%s--\r\n", related)
}

// writeAlternative emits the multipart/alternative container holding the
// single HTML part.
func writeAlternative(buf *bytes.Buffer, htmlBody string) {
	alt := newBoundary("alt")
	fmt.Fprintf(buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", alt)
	fmt.Fprintf(buf, "--%s\r\n", alt)
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	writeBase64(buf, []byte(htmlBody))
	fmt.Fprintf(buf, "--%s--\r\n", alt)
}

// writeInlineImagePart emits one embedded image as an inline CID part.
func writeInlineImagePart(buf *bytes.Buffer, boundary string, img EmbeddedImage) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: image/%s\r\n", img.Subtype)
	fmt.Fprintf(buf, "Content-ID: <%s>\r\n", img.ContentID)
	fmt.Fprintf(buf, "Content-Disposition: inline; filename=\"%s\"\r\n", encodeFilename(img.Filename))
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	writeBase64(buf, img.Bytes)
}

// writeAttachmentPart emits one file attachment part.
func writeAttachmentPart(buf *bytes.Buffer, boundary string, att attachment) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s\r\n", att.contentType)
	fmt.Fprintf(buf, "Content-Disposition: attachment; filename=\"%s\"\r\n", encodeFilename(att.filename))
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	writeBase64(buf, att.data)
}

// loadAttachments reads each referenced file, silently skipping paths that
// no longer exist on disk.
func loadAttachments(paths []string) []attachment {
	var atts []attachment
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		atts = append(atts, attachment{
			filename:    filepath.Base(path),
			contentType: contentType,
			data:        data,
		})
	}
	return atts
}

// writeBase64 writes data base64-encoded in 76-column lines.
func writeBase64(buf *bytes.Buffer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		buf.WriteString(encoded[i:end])
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
}

// encodeFilename makes a filename safe to carry in a header, B-encoding it
// when it contains non-ASCII characters.
func encodeFilename(name string) string {
	return mime.BEncoding.Encode("UTF-8", name)
}

// newBoundary generates a unique MIME boundary marker.
func newBoundary(prefix string) string {
	return fmt.Sprintf("=_%s_%s", prefix, strings.ReplaceAll(uuid.New().String(), "-", "")[:16])
}
