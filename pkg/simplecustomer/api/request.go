package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/tendant/simple-customer/pkg/simplecustomer"
)

// ImageField is the multipart field carrying a customer image
const ImageField = "image"

// formOverhead is the body allowance on top of the image for the other form fields
const formOverhead = 1 << 20

// errRequestTooLarge marks bodies or images above the upload limit
var errRequestTooLarge = errors.New("request body too large")

// customerBody is a decoded create or update body
type customerBody struct {
	attrs simplecustomer.Attributes
	image *simplecustomer.Asset
	form  *multipart.Form
	file  multipart.File
}

func (b *customerBody) Close() {
	if b.file != nil {
		b.file.Close()
	}
	if b.form != nil {
		b.form.RemoveAll()
	}
}

// readBody decodes a JSON, urlencoded or multipart customer body
func (h *CustomerHandler) readBody(w http.ResponseWriter, r *http.Request) (*customerBody, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("%w: bad content type: %v", simplecustomer.ErrInvalidCustomer, err)
		}
	}

	switch mediaType {
	case "multipart/form-data":
		return h.readMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		return &customerBody{attrs: formAttributes(r.PostForm)}, nil
	case "", "application/json":
		return readJSON(r.Body)
	default:
		return nil, fmt.Errorf("%w: unsupported content type %s", simplecustomer.ErrInvalidCustomer, mediaType)
	}
}

func readJSON(body io.Reader) (*customerBody, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		if errors.Is(err, io.EOF) {
			return &customerBody{attrs: simplecustomer.Attributes{}}, nil
		}
		return nil, bodyError(err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &customerBody{attrs: simplecustomer.Attributes(attrs)}, nil
}

func (h *CustomerHandler) readMultipart(r *http.Request) (*customerBody, error) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return nil, bodyError(err)
	}
	form := r.MultipartForm
	body := &customerBody{attrs: formAttributes(form.Value), form: form}

	files := form.File[ImageField]
	if len(files) == 0 {
		return body, nil
	}
	fh := files[0]
	if fh.Filename == "" || fh.Size == 0 {
		return body, nil
	}
	if fh.Size > h.maxUploadSize {
		body.Close()
		return nil, fmt.Errorf("%w: image is %d bytes, limit is %d", errRequestTooLarge, fh.Size, h.maxUploadSize)
	}

	file, err := fh.Open()
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	body.file = file
	body.image = &simplecustomer.Asset{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	}
	return body, nil
}

// formAttributes keeps the first value of every form field
func formAttributes(values map[string][]string) simplecustomer.Attributes {
	attrs := make(simplecustomer.Attributes, len(values))
	for k, v := range values {
		if len(v) > 0 {
			attrs[k] = v[0]
		}
	}
	return attrs
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit is %d bytes", errRequestTooLarge, maxErr.Limit)
	}
	// Some readers flatten the MaxBytesReader error into text
	if strings.Contains(err.Error(), "http: request body too large") {
		return fmt.Errorf("%w: %v", errRequestTooLarge, err)
	}
	return fmt.Errorf("%w: %v", simplecustomer.ErrInvalidCustomer, err)
}
