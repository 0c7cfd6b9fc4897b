package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/common/storage"
	"judgeflow/internal/judging/model"

	"github.com/klauspost/compress/zstd"
)

const (
	defaultFixtureCacheTTL      = 10 * time.Minute
	defaultFixtureCacheEmptyTTL = time.Minute
	defaultFixtureMaxBytes      = 32 << 20
	fixtureCacheKeyPrefix       = "judging:fixtures:"

	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// FixtureStore loads the fixture list of a problem.
type FixtureStore interface {
	// FetchFixtures returns an empty list when the problem has no fixture object.
	FetchFixtures(ctx context.Context, slug string) ([]model.Fixture, error)
}

// FixtureStoreConfig configures ObjectFixtureStore.
type FixtureStoreConfig struct {
	Bucket      string        `yaml:"bucket"`
	Compression string        `yaml:"compression"`
	MaxBytes    int64         `yaml:"maxBytes"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	EmptyTTL    time.Duration `yaml:"emptyTTL"`
}

// ObjectFixtureStore reads problems/{slug}/input_output.json from object storage.
type ObjectFixtureStore struct {
	storage storage.ObjectStorage
	cache   cache.Cache
	cfg     FixtureStoreConfig
}

func NewObjectFixtureStore(objectStorage storage.ObjectStorage, cacheClient cache.Cache, cfg FixtureStoreConfig) (*ObjectFixtureStore, error) {
	if objectStorage == nil {
		return nil, errors.New("object storage is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("fixture bucket is required")
	}
	switch cfg.Compression {
	case "":
		cfg.Compression = CompressionNone
	case CompressionNone, CompressionZstd:
	default:
		return nil, fmt.Errorf("unsupported fixture compression %q", cfg.Compression)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultFixtureMaxBytes
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultFixtureCacheTTL
	}
	if cfg.EmptyTTL <= 0 {
		cfg.EmptyTTL = defaultFixtureCacheEmptyTTL
	}
	return &ObjectFixtureStore{storage: objectStorage, cache: cacheClient, cfg: cfg}, nil
}

// FixtureKey returns the object key holding the fixtures of slug.
func (s *ObjectFixtureStore) FixtureKey(slug string) string {
	key := "problems/" + slug + "/input_output.json"
	if s.cfg.Compression == CompressionZstd {
		key += ".zst"
	}
	return key
}

func (s *ObjectFixtureStore) FetchFixtures(ctx context.Context, slug string) ([]model.Fixture, error) {
	if slug == "" {
		return nil, errors.New("slug is required")
	}
	fixtures, err := cache.GetWithCached[[]model.Fixture](
		ctx,
		s.cache,
		fixtureCacheKeyPrefix+slug,
		cache.JitterTTL(s.cfg.CacheTTL),
		cache.JitterTTL(s.cfg.EmptyTTL),
		func(f []model.Fixture) bool { return len(f) == 0 },
		marshalJSON[[]model.Fixture],
		unmarshalJSON[[]model.Fixture],
		func(ctx context.Context) ([]model.Fixture, error) {
			return s.load(ctx, slug)
		},
	)
	if err != nil {
		return nil, err
	}
	if fixtures == nil {
		fixtures = []model.Fixture{}
	}
	return fixtures, nil
}

func (s *ObjectFixtureStore) load(ctx context.Context, slug string) ([]model.Fixture, error) {
	obj, err := s.storage.GetObject(ctx, s.cfg.Bucket, s.FixtureKey(slug))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer obj.Close()

	var reader io.Reader = obj
	if s.cfg.Compression == CompressionZstd {
		dec, err := zstd.NewReader(obj)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader failed: %w", err)
		}
		defer dec.Close()
		reader = dec
	}
	return decodeFixtures(io.LimitReader(reader, s.cfg.MaxBytes+1), s.cfg.MaxBytes)
}

func decodeFixtures(r io.Reader, maxBytes int64) ([]model.Fixture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fixtures failed: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("fixture object exceeds %d bytes", maxBytes)
	}
	var fixtures []model.Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("decode fixtures failed: %w", err)
	}
	return fixtures, nil
}
