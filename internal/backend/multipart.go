package backend

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"
)

// Multipart is a form submitted as multipart/form-data, optionally with a
// single image part.
type Multipart struct {
	fields []field
	image  *imagePart
}

type field struct {
	name, value string
}

type imagePart struct {
	filename    string
	contentType string
	data        []byte
}

// Set appends a field. Empty values are sent as empty strings.
func (m *Multipart) Set(name, value string) {
	m.fields = append(m.fields, field{name: name, value: value})
}

// SetIfNotEmpty appends a field only when value is non-empty.
func (m *Multipart) SetIfNotEmpty(name, value string) {
	if value != "" {
		m.Set(name, value)
	}
}

// AttachImage adds the image file under the "image" field.
func (m *Multipart) AttachImage(filename, contentType string, data []byte) {
	m.image = &imagePart{filename: filename, contentType: contentType, data: data}
}

// Value returns the first value set for name.
func (m *Multipart) Value(name string) string {
	for _, f := range m.fields {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if m.image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+escapeQuotes(m.image.filename)+`"`)
		h.Set("Content-Type", m.image.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(m.image.data); err != nil {
			return nil, "", err
		}
	}

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\', '\r', '\n':
			out = append(out, '_')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
