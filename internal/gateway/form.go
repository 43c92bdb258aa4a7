package gateway

import (
	"bytes"
	"io"
	"mime/multipart"
	"sort"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// FormFile is a file part of a multipart body.
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// FormData is a multipart/form-data body. It passes through the gateway
// unchanged and the multipart boundary sets the content type.
type FormData struct {
	Fields map[string]string
	Files  []FormFile
}

// NewFormData creates an empty form.
func NewFormData() *FormData {
	return &FormData{Fields: make(map[string]string)}
}

// Set adds a text field.
func (f *FormData) Set(name, value string) *FormData {
	if f.Fields == nil {
		f.Fields = make(map[string]string)
	}
	f.Fields[name] = value
	return f
}

// AddFile adds a file part.
func (f *FormData) AddFile(field, filename string, content io.Reader) *FormData {
	f.Files = append(f.Files, FormFile{Field: field, Filename: filename, Content: content})
	return f
}

func (f FormData) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, f.Fields[name]); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeGatewayBodyEncode, "failed to encode form field "+name, err)
		}
	}

	for _, file := range f.Files {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeGatewayBodyEncode, "failed to encode form file "+file.Filename, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeGatewayBodyEncode, "failed to read form file "+file.Filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeGatewayBodyEncode, "failed to finish form body", err)
	}
	return &buf, w.FormDataContentType(), nil
}
