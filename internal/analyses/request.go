package analyses

import (
	"regexp"
	"strings"
)

// ModelID selects the remote prebuilt model.
type ModelID string

const (
	ModelRead   ModelID = "read"
	ModelLayout ModelID = "layout"
)

// ParseModel normalizes a model name. Unknown values fall back to layout.
func ParseModel(raw string) ModelID {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "read", "prebuilt-read":
		return ModelRead
	default:
		return ModelLayout
	}
}

// RemoteID is the model id used in service URLs.
func (m ModelID) RemoteID() string {
	return "prebuilt-" + string(m)
}

// Format is the requested content format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat normalizes an output format. Unknown values fall back to markdown.
func ParseFormat(raw string) Format {
	if strings.ToLower(strings.TrimSpace(raw)) == string(FormatText) {
		return FormatText
	}
	return FormatMarkdown
}

// Source references the document: a URL or base64 text, never both.
type Source struct {
	URL    string
	Base64 string
}

// Request is a normalized analysis request.
type Request struct {
	Source Source
	Model  ModelID
	Format Format
	Pages  string
}

var (
	dataURLPrefix = regexp.MustCompile(`^data:.*;base64,`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// NewRequest validates the source and normalizes the remaining fields.
// When both a URL and base64 are given the URL is used.
func NewRequest(fileURL, base64, model, format, pages string) (Request, error) {
	req := Request{
		Model:  ParseModel(model),
		Format: ParseFormat(format),
		Pages:  strings.TrimSpace(pages),
	}
	if u := strings.TrimSpace(fileURL); u != "" {
		req.Source.URL = u
	} else {
		req.Source.Base64 = cleanBase64(base64)
	}
	if err := req.validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (r Request) validate() error {
	if r.Source.URL == "" && r.Source.Base64 == "" {
		return ErrInvalidRequest
	}
	return nil
}

// cleanBase64 strips a data URL prefix and any embedded whitespace.
func cleanBase64(raw string) string {
	s := dataURLPrefix.ReplaceAllString(raw, "")
	return whitespace.ReplaceAllString(s, "")
}
