// Package cursor mints and validates the opaque page tokens handed out by
// customer stores.
//
// A token is the base64url encoding of a CBOR position record followed by a
// truncated HMAC-SHA256 tag. The position names the store scope that minted it,
// the id of the last record on the page and the time it was issued. Stores
// resume a listing strictly after that id.
package cursor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
)

const (
	version = 1
	tagSize = 16
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cursor: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("cursor: CBOR decoder initialization failed: " + err.Error())
	}
}

type position struct {
	Version int    `cbor:"1,keyasint"`
	Scope   string `cbor:"2,keyasint"`
	After   string `cbor:"3,keyasint"`
	Issued  int64  `cbor:"4,keyasint"`
}

// Codec mints and reads page tokens for one store scope
type Codec struct {
	scope  string
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a Codec
type Option func(*Codec)

// WithSecret signs tokens with the given key. Without a secret the tag only
// guards against corruption and tokens from other scopes.
func WithSecret(secret []byte) Option {
	return func(c *Codec) {
		c.secret = append([]byte(nil), secret...)
	}
}

// WithMaxAge rejects tokens older than d. Zero disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(c *Codec) {
		c.maxAge = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// New creates a codec for the given scope, typically "<store>/<collection>".
func New(scope string, opts ...Option) *Codec {
	c := &Codec{
		scope: scope,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode mints a token that resumes a listing after the given id.
func (c *Codec) Encode(after string) (simplecustomer.PageToken, error) {
	if after == "" {
		return simplecustomer.PageToken{}, fmt.Errorf("cursor: empty resume marker")
	}
	payload, err := encMode.Marshal(position{
		Version: version,
		Scope:   c.scope,
		After:   after,
		Issued:  c.now().Unix(),
	})
	if err != nil {
		return simplecustomer.PageToken{}, fmt.Errorf("cursor: failed to encode position: %w", err)
	}
	raw := append(payload, c.sign(payload)...)
	return simplecustomer.NewPageToken(base64.RawURLEncoding.EncodeToString(raw)), nil
}

// Decode returns the id a listing should resume after. The zero token decodes
// to "" (start from the beginning). Any unreadable, foreign, tampered or
// expired token fails with simplecustomer.ErrInvalidCursor.
func (c *Codec) Decode(token simplecustomer.PageToken) (string, error) {
	if token.IsZero() {
		return "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token.String())
	if err != nil {
		return "", fmt.Errorf("%w: malformed encoding", simplecustomer.ErrInvalidCursor)
	}
	if len(raw) <= tagSize {
		return "", fmt.Errorf("%w: token too short", simplecustomer.ErrInvalidCursor)
	}

	payload, tag := raw[:len(raw)-tagSize], raw[len(raw)-tagSize:]
	if !hmac.Equal(tag, c.sign(payload)) {
		return "", fmt.Errorf("%w: signature mismatch", simplecustomer.ErrInvalidCursor)
	}

	var pos position
	if err := decMode.Unmarshal(payload, &pos); err != nil {
		return "", fmt.Errorf("%w: malformed payload", simplecustomer.ErrInvalidCursor)
	}
	if pos.Version != version {
		return "", fmt.Errorf("%w: unsupported version %d", simplecustomer.ErrInvalidCursor, pos.Version)
	}
	if pos.Scope != c.scope {
		return "", fmt.Errorf("%w: token belongs to %q", simplecustomer.ErrInvalidCursor, pos.Scope)
	}
	if pos.After == "" {
		return "", fmt.Errorf("%w: empty resume marker", simplecustomer.ErrInvalidCursor)
	}
	if c.maxAge > 0 && c.now().Sub(time.Unix(pos.Issued, 0)) > c.maxAge {
		return "", fmt.Errorf("%w: token expired", simplecustomer.ErrInvalidCursor)
	}

	return pos.After, nil
}

// Page builds a page from a result set read with limit pageSize+1. When the
// extra row is present it is dropped and a token resuming after the last kept
// customer is attached.
func (c *Codec) Page(items []*simplecustomer.Customer, pageSize int) (*simplecustomer.Page, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("cursor: page size must be positive, got %d", pageSize)
	}
	if items == nil {
		items = []*simplecustomer.Customer{}
	}
	if len(items) <= pageSize {
		return &simplecustomer.Page{Items: items}, nil
	}

	items = items[:pageSize]
	token, err := c.Encode(items[len(items)-1].ID)
	if err != nil {
		return nil, err
	}
	return &simplecustomer.Page{Items: items, NextPageToken: token}, nil
}

func (c *Codec) sign(payload []byte) []byte {
	key := c.secret
	if len(key) == 0 {
		key = []byte("simple-customer/" + c.scope)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)[:tagSize]
}
