package objectkey

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var objectID = uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

func TestTimestampGenerator(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	gen := NewTimestampGenerator()
	gen.Now = func() time.Time { return at }

	tests := []struct {
		name     string
		prefix   string
		metadata *KeyMetadata
		expected string
	}{
		{
			name:     "file name",
			metadata: &KeyMetadata{FileName: "logo.png"},
			expected: "1700000000123-345678901234-logo.png",
		},
		{
			name:     "unsafe characters",
			metadata: &KeyMetadata{FileName: "my logo/v2?.png"},
			expected: "1700000000123-345678901234-my_logo_v2_.png",
		},
		{
			name:     "upload time wins over clock",
			metadata: &KeyMetadata{FileName: "a.jpg", UploadedAt: time.UnixMilli(42)},
			expected: "42-345678901234-a.jpg",
		},
		{
			name:     "no file name falls back to object id",
			metadata: nil,
			expected: "1700000000123-987fcdeb-51a2-43d1-9f12-345678901234",
		},
		{
			name:     "prefix",
			prefix:   "Customers/",
			metadata: &KeyMetadata{FileName: "logo.png"},
			expected: "customers/1700000000123-345678901234-logo.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen.Prefix = tt.prefix
			assert.Equal(t, tt.expected, gen.GenerateKey(objectID, tt.metadata))
		})
	}
}

func TestTimestampGeneratorSameMillisecond(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	gen := &TimestampGenerator{Now: func() time.Time { return at }}
	meta := &KeyMetadata{FileName: "logo.png"}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := uuid.NewV7()
		require.NoError(t, err)
		key := gen.GenerateKey(id, meta)
		assert.True(t, strings.HasPrefix(key, "1700000000123-"), key)
		assert.True(t, strings.HasSuffix(key, "-logo.png"), key)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestGitLikeGenerator(t *testing.T) {
	t.Run("with file name", func(t *testing.T) {
		key := NewGitLikeGenerator().GenerateKey(objectID, &KeyMetadata{FileName: "photo 1.jpg"})
		assert.Equal(t, "images/objects/98/7fcdeb51a243d19f12345678901234_photo_1.jpg", key)
	})

	t.Run("without file name", func(t *testing.T) {
		key := NewGitLikeGenerator().GenerateKey(objectID, nil)
		assert.Equal(t, "images/objects/98/7fcdeb51a243d19f12345678901234", key)
	})

	t.Run("wider shard", func(t *testing.T) {
		key := (&GitLikeGenerator{ShardLength: 3}).GenerateKey(objectID, nil)
		assert.True(t, strings.HasPrefix(key, "images/objects/987/"))
	})

	t.Run("zero shard length uses default", func(t *testing.T) {
		key := (&GitLikeGenerator{}).GenerateKey(objectID, nil)
		assert.True(t, strings.HasPrefix(key, "images/objects/98/"))
	})
}

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		strategy string
		want     any
	}{
		{"", &TimestampGenerator{}},
		{"timestamp", &TimestampGenerator{}},
		{"git-like", &GitLikeGenerator{}},
		{"GitLike", &GitLikeGenerator{}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			gen, err := NewGenerator(tt.strategy)
			require.NoError(t, err)
			assert.IsType(t, tt.want, gen)
		})
	}

	_, err := NewGenerator("hashed")
	assert.Error(t, err)
}

func TestFuncGenerator(t *testing.T) {
	gen := FuncGenerator(func(id uuid.UUID, _ *KeyMetadata) string { return "custom/" + id.String() })
	assert.Equal(t, "custom/"+objectID.String(), gen.GenerateKey(objectID, nil))
}
