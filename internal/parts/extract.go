// Package parts turns the parts of a multimedia record into a displayable
// body and an optional image reference.
package parts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/matheus3301/smsync/internal/provider"
	"go.uber.org/zap"
)

// ErrExtractionFailed is returned when the parts of a record could not be
// read or decoded.
var ErrExtractionFailed = errors.New("part extraction failed")

// NoContent is the body shown for records with no usable parts.
const NoContent = "Multimedia Message (No Content Found)"

// ImageLabel is the snippet shown for records carrying only an image.
const ImageLabel = "Image"

// Content is what a multimedia record displays.
type Content struct {
	Text     string
	ImageRef string
}

// Snippet returns a one-line preview of c.
func (c Content) Snippet() string {
	switch {
	case c.Text != "":
		return c.Text
	case c.ImageRef != "":
		return ImageLabel
	default:
		return NoContent
	}
}

// ImageRef formats the reference to part id.
func ImageRef(id int64) string {
	return "part:" + strconv.FormatInt(id, 10)
}

// Extractor reads parts through the store and classifies them.
type Extractor struct {
	reader provider.PartReader
	logger *zap.Logger
}

// NewExtractor creates an extractor over r.
func NewExtractor(r provider.PartReader, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{reader: r, logger: logger}
}

// Extract returns the content of multimedia record id. The last non-blank
// text part and the last image or video part win. Records without either
// get NoContent as text. On error the returned content is still usable.
func (e *Extractor) Extract(ctx context.Context, id int64) (Content, error) {
	ps, err := e.reader.Parts(ctx, id)
	if err != nil {
		return Content{Text: NoContent}, fmt.Errorf("%w: record %d: %w", ErrExtractionFailed, id, err)
	}

	var c Content
	var decodeErr error
	for _, p := range ps {
		switch mediaType(p) {
		case "text":
			text, ok := partText(p)
			if !ok {
				decodeErr = fmt.Errorf("%w: part %d: undecodable %q text", ErrExtractionFailed, p.ID, p.Charset)
			}
			if strings.TrimSpace(text) != "" {
				c.Text = text
			}
		case "image", "video":
			c.ImageRef = ImageRef(p.ID)
		}
	}
	if c.Text == "" && c.ImageRef == "" {
		c.Text = NoContent
	}
	return c, decodeErr
}

// Resolve is Extract for display paths: failures are logged and the
// fallback content returned.
func (e *Extractor) Resolve(ctx context.Context, id int64) Content {
	c, err := e.Extract(ctx, id)
	if err != nil {
		e.logger.Warn("multimedia part extraction failed", zap.Int64("mms_id", id), zap.Error(err))
	}
	return c
}

// mediaType returns the top-level type of p. Parts without a declared
// type are sniffed when their payload is available and treated as text
// otherwise.
func mediaType(p provider.Part) string {
	ct := strings.ToLower(strings.TrimSpace(p.ContentType))
	if (ct == "" || ct == "application/octet-stream") && len(p.Data) > 0 {
		ct = mimetype.Detect(p.Data).String()
	}
	if ct == "" {
		return "text"
	}
	ct, _, _ = strings.Cut(ct, ";")
	top, _, _ := strings.Cut(strings.TrimSpace(ct), "/")
	return top
}

// partText returns the text of p. Stored text that is already valid
// UTF-8 is used as is; the declared charset applies to raw bytes only.
func partText(p provider.Part) (string, bool) {
	if p.Text != "" {
		if utf8.ValidString(p.Text) {
			return p.Text, true
		}
		return decodeText([]byte(p.Text), p.Charset)
	}
	if len(p.Data) > 0 {
		return decodeText(p.Data, p.Charset)
	}
	return "", true
}
