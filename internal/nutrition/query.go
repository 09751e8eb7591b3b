package nutrition

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const DefaultImageMIMEType = "image/jpeg"

var (
	errTextRequired  = validation.NewError("validation_query_required", "Query is required")
	errImageRequired = validation.NewError("validation_image_required", "Image data is required")
)

// TextQuery is a free-text food description such as "2 large eggs and 100g rice".
type TextQuery struct {
	Text string
}

// ImageQuery carries a base64 encoded food photo.
type ImageQuery struct {
	ImageData string
	MIMEType  string
}

func (q TextQuery) Validate() error {
	return validation.Validate(strings.TrimSpace(q.Text), validation.Required.ErrorObject(errTextRequired))
}

func (q ImageQuery) Validate() error {
	return validation.Validate(strings.TrimSpace(q.ImageData), validation.Required.ErrorObject(errImageRequired))
}

// NewImageQuery builds an ImageQuery from what a browser typically sends: either
// raw base64 or a data URL ("data:image/png;base64,..."). The MIME type of a data
// URL wins over the default.
func NewImageQuery(raw string) ImageQuery {
	raw = strings.TrimSpace(raw)
	q := ImageQuery{ImageData: raw, MIMEType: DefaultImageMIMEType}

	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return q
	}

	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return q
	}

	mime, _, _ := strings.Cut(meta, ";")
	if mime != "" {
		q.MIMEType = mime
	}
	q.ImageData = data

	return q
}
