package repcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-server/internal/convert"
	"media-server/internal/logging"
	"media-server/internal/metrics"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound means the source file does not exist.
	ErrNotFound = errors.New("source file not found")
	// ErrUnsupportedType means no converter handles the source's type.
	ErrUnsupportedType = errors.New("unsupported media type")
)

// DefaultTimeout bounds a single conversion. Video transcodes dominate this;
// image conversions finish in well under a second.
const DefaultTimeout = 2 * time.Minute

// Artifact is a cached representation ready to serve.
type Artifact struct {
	Bytes       []byte
	ContentType string
}

// Cache resolves representation requests against a disk-backed artifact store.
type Cache struct {
	dir      string
	registry *convert.Registry
	timeout  time.Duration
	group    singleflight.Group
}

// New returns a cache rooted at dir, producing artifacts through registry.
// A timeout of zero selects DefaultTimeout.
func New(dir string, registry *convert.Registry, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Cache{dir: dir, registry: registry, timeout: timeout}
}

// Resolve returns the artifact for (absPath, desc), converting and caching it
// if no cached copy exists. A cached artifact is served as-is; staleness
// against the source is not checked here. Identical concurrent requests share
// one producer, and the producer outlives ctx so a caller disconnect does not
// abort a conversion other callers may want.
func (c *Cache) Resolve(ctx context.Context, absPath string, desc convert.Descriptor) (*Artifact, error) {
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			metrics.RepCacheRequestsTotal.WithLabelValues("error").Inc()
			return nil, ErrNotFound
		}
		metrics.RepCacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("stat source: %w", err)
	}

	converter, ok := c.registry.ForPath(absPath)
	if !ok {
		metrics.RepCacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, ErrUnsupportedType
	}

	artifactPath := c.artifactPath(absPath, desc)
	if art, err := readArtifact(artifactPath); err == nil {
		metrics.RepCacheRequestsTotal.WithLabelValues("hit").Inc()
		return art, nil
	}

	metrics.RepCacheRequestsTotal.WithLabelValues("miss").Inc()

	key := absPath + "|" + desc.String()
	ch := c.group.DoChan(key, func() (any, error) {
		return c.produce(context.WithoutCancel(ctx), converter, absPath, desc, artifactPath)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.RepCacheDedupTotal.Inc()
		}
		if res.Err != nil {
			metrics.RepCacheRequestsTotal.WithLabelValues("error").Inc()
			return nil, res.Err
		}
		return res.Val.(*Artifact), nil
	case <-ctx.Done():
		// The producer keeps running; its result lands on disk for the
		// next request.
		return nil, ctx.Err()
	}
}

// produce runs the converter and persists the result. Called at most once per
// key across concurrent requests.
func (c *Cache) produce(ctx context.Context, converter convert.Converter, absPath string, desc convert.Descriptor, artifactPath string) (*Artifact, error) {
	// Another request may have finished between our lookup and the
	// singleflight admission.
	if art, err := readArtifact(artifactPath); err == nil {
		return art, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := converter.Convert(ctx, absPath, desc)
	metrics.RepCacheConvertDuration.WithLabelValues(converterName(converter)).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", convert.ErrConversionFailed, ctxErr)
		}
		return nil, err
	}

	if err := writeArtifact(artifactPath, result); err != nil {
		// The conversion itself succeeded; serve it and let a later
		// request retry the persist.
		logging.Warn("failed to persist artifact %s: %v", artifactPath, err)
	} else {
		metrics.RepCacheArtifactBytes.Add(float64(len(result.Bytes)))
		logging.Debug("Cached %s (%d bytes) in %v", artifactPath, len(result.Bytes), time.Since(start))
	}

	return &Artifact{Bytes: result.Bytes, ContentType: result.ContentType}, nil
}

// artifactPath shards artifacts into one directory per source file so a
// source's representations can be enumerated and evicted together.
func (c *Cache) artifactPath(absPath string, desc convert.Descriptor) string {
	sum := md5.Sum([]byte(absPath))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:]), desc.String())
}

// readArtifact loads a cached artifact and its content-type sidecar. Any
// failure reads as a cache miss.
func readArtifact(path string) (*Artifact, error) {
	ct, err := os.ReadFile(path + ".ct")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Artifact{Bytes: data, ContentType: string(ct)}, nil
}

// writeArtifact persists via temp-file rename so readers never observe a
// partial artifact. The sidecar lands first: an artifact file implies its
// content type is readable.
func writeArtifact(path string, result *convert.Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	if err := writeFileAtomic(dir, path+".ct", []byte(result.ContentType)); err != nil {
		return err
	}
	return writeFileAtomic(dir, path, result.Bytes)
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func converterName(c convert.Converter) string {
	name := fmt.Sprintf("%T", c)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}
