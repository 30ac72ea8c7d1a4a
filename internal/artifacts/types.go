package artifacts

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	pb "github.com/bioagent-ai/bioagent/pkg/proto"
)

// Store persists artifact bytes out of band from their metadata.
type Store interface {
	Put(ctx context.Context, artifactID string, data io.Reader, opts PutOptions) (string, error)
	Get(ctx context.Context, artifactID string) (io.ReadCloser, error)
	Delete(ctx context.Context, artifactID string) error
	Exists(ctx context.Context, artifactID string) (bool, error)
	Close() error
}

// Repository tracks artifact metadata and fronts a Store for their data.
type Repository interface {
	StoreArtifact(ctx context.Context, artifact *pb.Artifact, data io.Reader) error
	GetArtifact(ctx context.Context, artifactID string) (*pb.Artifact, io.ReadCloser, error)
	ListArtifacts(ctx context.Context, filter Filter) ([]*pb.Artifact, error)
	DeleteArtifact(ctx context.Context, artifactID string) error
	PruneExpired(ctx context.Context) (int, error)
}

// PutOptions configures how a Store persists artifact data.
type PutOptions struct {
	MimeType string
	TTL      time.Duration
	Metadata map[string]string
}

// Filter narrows ListArtifacts results.
type Filter struct {
	SessionID     string
	EdgeID        string
	Type          string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// Metadata is the durable record a Repository keeps for a stored artifact.
type Metadata struct {
	ID         string
	SessionID  string
	EdgeID     string
	Type       string
	MimeType   string
	Filename   string
	Size       int64
	Reference  string
	TTLSeconds int32
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

var (
	defaultTTLsMu sync.RWMutex
	defaultTTLs   = map[string]time.Duration{
		"screenshot": 7 * 24 * time.Hour,
		"recording":  30 * 24 * time.Hour,
		"file":       14 * 24 * time.Hour,
	}
	fallbackTTL = 24 * time.Hour
)

// GetDefaultTTL returns the default retention period for an artifact type,
// falling back to one day for unrecognized types.
func GetDefaultTTL(artifactType string) time.Duration {
	key := strings.ToLower(strings.TrimSpace(artifactType))
	defaultTTLsMu.RLock()
	defer defaultTTLsMu.RUnlock()
	if ttl, ok := defaultTTLs[key]; ok {
		return ttl
	}
	return fallbackTTL
}

// SetDefaultTTLs merges overrides into the default TTL table. Empty keys are
// ignored; a nil map is a no-op.
func SetDefaultTTLs(overrides map[string]time.Duration) {
	if overrides == nil {
		return
	}
	defaultTTLsMu.Lock()
	defer defaultTTLsMu.Unlock()
	for k, v := range overrides {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		defaultTTLs[key] = v
	}
}
