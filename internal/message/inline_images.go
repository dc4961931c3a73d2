package message

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"  // BMP sniffing
	_ "golang.org/x/image/webp" // WebP sniffing
)

// EmbeddedImage is an image lifted out of the HTML body into its own MIME
// part. It lives only for the duration of one Compile call.
type EmbeddedImage struct {
	ContentID string
	Filename  string
	Subtype   string
	Bytes     []byte
}

var (
	imgTagPattern = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	srcPattern    = regexp.MustCompile(`(?i)\bsrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	widthPattern  = regexp.MustCompile(`(?i)\s+width\s*=\s*(?:"([0-9]+)(?:px)?"|'([0-9]+)(?:px)?'|([0-9]+))`)
	heightPattern = regexp.MustCompile(`(?i)\s+height\s*=\s*(?:"([0-9]+)(?:px)?"|'([0-9]+)(?:px)?'|([0-9]+))`)
	stylePattern  = regexp.MustCompile(`(?i)\bstyle\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// extensionSubtypes maps upload file extensions to MIME image subtypes.
var extensionSubtypes = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".gif":  "gif",
	".bmp":  "bmp",
	".webp": "webp",
}

// rewriteInlineImages scans htmlBody for <img> tags whose src points at a
// locally-served upload, embeds the referenced files, and rewrites each src
// to a cid: reference. Tags with a non-local src, a missing file, or markup
// the narrow regexes cannot parse pass through untouched; this is a
// best-effort text transform, not an HTML parser.
func (c *Compiler) rewriteInlineImages(htmlBody string) (string, []EmbeddedImage) {
	var images []EmbeddedImage

	rewritten := imgTagPattern.ReplaceAllStringFunc(htmlBody, func(tag string) string {
		src := firstGroup(srcPattern.FindStringSubmatch(tag))
		if src == "" {
			return tag
		}

		filename, ok := c.localUploadFilename(src)
		if !ok {
			return tag
		}

		path := filepath.Join(c.uploadDir, filepath.Base(filename))
		data, err := os.ReadFile(path)
		if err != nil {
			// Missing upload: leave the tag as-is.
			return tag
		}

		img := EmbeddedImage{
			ContentID: fmt.Sprintf("%s@mailer", uuid.New().String()),
			Filename:  filepath.Base(filename),
			Subtype:   detectImageSubtype(filename, data),
			Bytes:     data,
		}
		images = append(images, img)

		updated := srcPattern.ReplaceAllString(tag, fmt.Sprintf(`src="cid:%s"`, img.ContentID))
		return normalizeDimensions(updated)
	})

	return rewritten, images
}

// localUploadFilename reports whether src references a locally-served upload
// and returns the bare filename when it does. Both the path form
// (/uploads/x.png) and the absolute public URL form
// (http://host/uploads/x.png) are recognized.
func (c *Compiler) localUploadFilename(src string) (string, bool) {
	if strings.HasPrefix(src, c.uploadURLPrefix) {
		return strings.TrimPrefix(src, c.uploadURLPrefix), true
	}
	if c.publicBaseURL != "" {
		full := strings.TrimSuffix(c.publicBaseURL, "/") + c.uploadURLPrefix
		if strings.HasPrefix(src, full) {
			return strings.TrimPrefix(src, full), true
		}
	}
	return "", false
}

// normalizeDimensions merges width/height attributes and any existing inline
// style into a single style declaration in pixel units, dropping the
// now-redundant attributes.
func normalizeDimensions(tag string) string {
	width := firstGroup(widthPattern.FindStringSubmatch(tag))
	height := firstGroup(heightPattern.FindStringSubmatch(tag))
	existing := firstGroup(stylePattern.FindStringSubmatch(tag))

	if width == "" && height == "" {
		return tag
	}

	var decls []string
	if trimmed := strings.Trim(strings.TrimSpace(existing), ";"); trimmed != "" {
		decls = append(decls, trimmed)
	}
	if width != "" && !strings.Contains(existing, "width") {
		decls = append(decls, fmt.Sprintf("width: %spx", width))
	}
	if height != "" && !strings.Contains(existing, "height") {
		decls = append(decls, fmt.Sprintf("height: %spx", height))
	}
	style := strings.Join(decls, "; ") + ";"

	tag = widthPattern.ReplaceAllString(tag, "")
	tag = heightPattern.ReplaceAllString(tag, "")

	if existing != "" {
		return stylePattern.ReplaceAllString(tag, fmt.Sprintf(`style="%s"`, style))
	}
	// No style attribute yet: insert one right after the tag name.
	return strings.Replace(tag, "<img", fmt.Sprintf(`<img style="%s"`, style), 1)
}

// detectImageSubtype determines the MIME image subtype from the filename
// extension, falling back to content sniffing and finally to png.
func detectImageSubtype(filename string, data []byte) string {
	if subtype, ok := extensionSubtypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return subtype
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return format
	}
	return "png"
}

// firstGroup returns the first non-empty capture group of a regexp match.
func firstGroup(match []string) string {
	for i := 1; i < len(match); i++ {
		if match[i] != "" {
			return match[i]
		}
	}
	return ""
}
