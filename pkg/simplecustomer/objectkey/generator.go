package objectkey

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy names accepted by NewGenerator
const (
	StrategyTimestamp = "timestamp"
	StrategyGitLike   = "git-like"
)

// Generator names the object an uploaded customer image is stored under
type Generator interface {
	GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata carries the upload facts a generator may use
type KeyMetadata struct {
	FileName    string
	ContentType string
	UploadedAt  time.Time
}

// TimestampGenerator names objects "<unix-millis>-<id suffix>-<file name>".
// The suffix is the last twelve hex digits of the object ID, which are
// random in a v7 UUID, so equal names uploaded in the same millisecond
// get distinct keys.
type TimestampGenerator struct {
	// Prefix is prepended as a directory, e.g. "customers"
	Prefix string
	Now    func() time.Time
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{Now: time.Now}
}

func (g *TimestampGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	at := time.Time{}
	name := ""
	if metadata != nil {
		at = metadata.UploadedAt
		name = sanitizeFilename(metadata.FileName)
	}
	if at.IsZero() {
		if g.Now != nil {
			at = g.Now()
		} else {
			at = time.Now()
		}
	}
	id := objectID.String()
	key := fmt.Sprintf("%d-%s", at.UnixMilli(), id)
	if name != "" {
		key = fmt.Sprintf("%d-%s-%s", at.UnixMilli(), id[len(id)-12:], name)
	}
	if g.Prefix != "" {
		key = path.Join(sanitizePathComponent(g.Prefix), key)
	}
	return key
}

// GitLikeGenerator shards objects by object ID:
// images/objects/ab/cd1234ef5678_filename
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{ShardLength: 2}
}

func (g *GitLikeGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	id := strings.ReplaceAll(objectID.String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 {
		shard = 2
	}
	if shard > len(id) {
		shard = len(id)
	}

	filename := id[shard:]
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("images/objects/%s/%s", id[:shard], filename)
}

// FuncGenerator adapts a plain function
type FuncGenerator func(objectID uuid.UUID, metadata *KeyMetadata) string

func (f FuncGenerator) GenerateKey(objectID uuid.UUID, metadata *KeyMetadata) string {
	return f(objectID, metadata)
}

// NewGenerator returns the generator for a strategy name. An empty name
// selects the timestamp strategy.
func NewGenerator(strategy string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyTimestamp:
		return NewTimestampGenerator(), nil
	case StrategyGitLike, "gitlike":
		return NewGitLikeGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key strategy: %s", strategy)
	}
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
	"#", "_",
	"%", "_",
)

func sanitizeFilename(filename string) string {
	return filenameReplacer.Replace(strings.TrimSpace(filename))
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(sanitizeFilename(strings.Trim(component, "/")))
}
