package simplecustomer

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Well-known attribute names
const (
	FieldID       = "id"
	FieldImageURL = "imageUrl"
)

// DefaultPageSize is the number of customers returned per page
const DefaultPageSize = 10

// NewID returns a fresh customer ID. IDs are UUIDv7 strings, so sorting
// them lexically yields creation order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Attributes is the attribute bag of a customer. Values are scalars:
// strings, booleans, numbers or nil.
type Attributes map[string]any

// Clone returns a shallow copy of the attributes. A nil receiver yields an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Normalize returns a copy with numbers in canonical form. json.Number and
// the integer types become int64, or float64 when they do not fit.
// float32 becomes float64.
func (a Attributes) Normalize() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = normalizeNumber(v)
	}
	return out
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint:
		return unsigned(uint64(n))
	case uint64:
		return unsigned(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func unsigned(n uint64) any {
	if n <= math.MaxInt64 {
		return int64(n)
	}
	return float64(n)
}

// ImageURL returns the imageUrl attribute, or "" when it is absent.
func (a Attributes) ImageURL() string {
	s, _ := a[FieldImageURL].(string)
	return s
}

// Validate checks a create/update payload. The payload must not carry an id
// and every value must be a scalar.
func (a Attributes) Validate() error {
	if _, ok := a[FieldID]; ok {
		return fmt.Errorf("%w: id is assigned by the store and cannot be supplied", ErrInvalidCustomer)
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("%w: empty attribute name", ErrInvalidCustomer)
		}
		if !isScalar(a[k]) {
			return fmt.Errorf("%w: attribute %q must be a scalar value, got %T", ErrInvalidCustomer, k, a[k])
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// Customer is a stored customer record
type Customer struct {
	ID         string
	Attributes Attributes
}

// ImageURL returns the customer's imageUrl attribute
func (c *Customer) ImageURL() string {
	return c.Attributes.ImageURL()
}

// MarshalJSON renders the customer as a flat object with its id alongside the attributes.
func (c Customer) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Attributes)+1)
	for k, v := range c.Attributes {
		flat[k] = v
	}
	flat[FieldID] = c.ID
	return json.Marshal(flat)
}

// UnmarshalJSON reads a flat customer object.
func (c *Customer) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	id, _ := flat[FieldID].(string)
	delete(flat, FieldID)
	c.ID = id
	c.Attributes = Attributes(flat)
	return nil
}

// PageToken is an opaque continuation token. The zero value means there is no
// token: as input it starts a listing from the beginning, as output it marks
// the end of the collection. Only the store that minted a token can read it.
type PageToken struct {
	value string
}

// NewPageToken wraps a raw token string. An empty string yields the zero token.
func NewPageToken(raw string) PageToken {
	return PageToken{value: raw}
}

// IsZero reports whether the token is absent
func (t PageToken) IsZero() bool {
	return t.value == ""
}

// String returns the raw token
func (t PageToken) String() string {
	return t.value
}

// Page is one page of a customer listing
type Page struct {
	Items         []*Customer
	NextPageToken PageToken
}

// HasMore reports whether another page follows this one
func (p *Page) HasMore() bool {
	return !p.NextPageToken.IsZero()
}

type pageJSON struct {
	Items         []*Customer `json:"items"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// MarshalJSON renders the page envelope. Items is never null and
// nextPageToken is omitted at the end of the collection.
func (p Page) MarshalJSON() ([]byte, error) {
	items := p.Items
	if items == nil {
		items = []*Customer{}
	}
	return json.Marshal(pageJSON{Items: items, NextPageToken: p.NextPageToken.String()})
}

// UnmarshalJSON reads a page envelope
func (p *Page) UnmarshalJSON(data []byte) error {
	var raw pageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Items = raw.Items
	p.NextPageToken = NewPageToken(raw.NextPageToken)
	return nil
}

// Asset is an image bound to a create or update request
type Asset struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult describes an uploaded asset
type UploadResult struct {
	ObjectKey string
	PublicURL string
}
