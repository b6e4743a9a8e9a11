package storage

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/objectkey"
	"github.com/tendant/simple-customer/pkg/simplecustomer/urlstrategy"
)

func TestContentType(t *testing.T) {
	t.Run("declared", func(t *testing.T) {
		ct, body, err := ContentType(&simplecustomer.Asset{ContentType: "image/png", Body: strings.NewReader("x")})
		require.NoError(t, err)
		assert.Equal(t, "image/png", ct)
		data, _ := io.ReadAll(body)
		assert.Equal(t, "x", string(data))
	})

	t.Run("sniffed keeps body intact", func(t *testing.T) {
		payload := "\x89PNG\r\n\x1a\n" + strings.Repeat("p", 1024)
		ct, body, err := ContentType(&simplecustomer.Asset{Body: strings.NewReader(payload)})
		require.NoError(t, err)
		assert.Equal(t, "image/png", ct)
		data, _ := io.ReadAll(body)
		assert.Equal(t, payload, string(data))
	})

	t.Run("empty body", func(t *testing.T) {
		ct, _, err := ContentType(&simplecustomer.Asset{Body: strings.NewReader("")})
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", ct)
	})

	t.Run("nil body", func(t *testing.T) {
		_, _, err := ContentType(&simplecustomer.Asset{})
		assert.Error(t, err)
	})
}

func TestNaming(t *testing.T) {
	n := NewNaming(nil, urlstrategy.NewCDNStrategy("https://cdn.example.com"))
	n.Now = func() time.Time { return time.UnixMilli(1000) }

	key := n.ObjectKey(&simplecustomer.Asset{FileName: "logo.png"}, "image/png")
	assert.Regexp(t, `^1000-[0-9a-f]{12}-logo\.png$`, key)

	res, err := n.Result(key)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/"+key, res.PublicURL)
	assert.Equal(t, key, res.ObjectKey)

	custom := NewNaming(objectkey.FuncGenerator(func(uuid.UUID, *objectkey.KeyMetadata) string { return "fixed" }), nil)
	assert.Equal(t, "fixed", custom.ObjectKey(&simplecustomer.Asset{}, ""))
	_, err = custom.Result("fixed")
	assert.Error(t, err)
}
