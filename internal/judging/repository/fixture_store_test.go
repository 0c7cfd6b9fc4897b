package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"judgeflow/internal/common/storage"

	"github.com/klauspost/compress/zstd"
)

type fakeObjectStorage struct {
	objects map[string][]byte
	gets    int
}

func (f *fakeObjectStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.gets++
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

const twoSumFixtures = `[{"input":"2 7 11 15\n9","output":"0 1"},{"input":"3 2 4\n6","output":"1 2"}]`

func TestFetchFixtures(t *testing.T) {
	objects := &fakeObjectStorage{objects: map[string][]byte{
		"fixtures/problems/two-sum/input_output.json": []byte(twoSumFixtures),
	}}
	c, _ := newMiniCache(t)
	store, err := NewObjectFixtureStore(objects, c, FixtureStoreConfig{Bucket: "fixtures"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	for i := 0; i < 2; i++ {
		fixtures, err := store.FetchFixtures(context.Background(), "two-sum")
		if err != nil {
			t.Fatalf("FetchFixtures: %v", err)
		}
		if len(fixtures) != 2 || fixtures[1].Output != "1 2" {
			t.Fatalf("unexpected fixtures %+v", fixtures)
		}
	}
	if objects.gets != 1 {
		t.Fatalf("second fetch should be served from cache, gets=%d", objects.gets)
	}
}

func TestFetchFixturesMissingObjectIsEmpty(t *testing.T) {
	store, err := NewObjectFixtureStore(&fakeObjectStorage{}, nil, FixtureStoreConfig{Bucket: "fixtures"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	fixtures, err := store.FetchFixtures(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("missing object should not be an error: %v", err)
	}
	if fixtures == nil || len(fixtures) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", fixtures)
	}
}

func TestFetchFixturesZstd(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err := enc.Write([]byte(twoSumFixtures)); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}

	objects := &fakeObjectStorage{objects: map[string][]byte{
		"fixtures/problems/two-sum/input_output.json.zst": buf.Bytes(),
	}}
	store, err := NewObjectFixtureStore(objects, nil, FixtureStoreConfig{Bucket: "fixtures", Compression: CompressionZstd})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if key := store.FixtureKey("two-sum"); key != "problems/two-sum/input_output.json.zst" {
		t.Fatalf("unexpected key %s", key)
	}
	fixtures, err := store.FetchFixtures(context.Background(), "two-sum")
	if err != nil {
		t.Fatalf("FetchFixtures: %v", err)
	}
	if len(fixtures) != 2 || fixtures[0].Input != "2 7 11 15\n9" {
		t.Fatalf("unexpected fixtures %+v", fixtures)
	}
}

func TestFetchFixturesRejectsOversizedAndMalformed(t *testing.T) {
	objects := &fakeObjectStorage{objects: map[string][]byte{
		"b/problems/big/input_output.json": []byte(twoSumFixtures),
		"b/problems/bad/input_output.json": []byte(`{"input":"x"}`),
	}}
	store, err := NewObjectFixtureStore(objects, nil, FixtureStoreConfig{Bucket: "b", MaxBytes: 16})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.FetchFixtures(context.Background(), "big"); err == nil {
		t.Fatalf("expected size error")
	}

	store, _ = NewObjectFixtureStore(objects, nil, FixtureStoreConfig{Bucket: "b"})
	if _, err := store.FetchFixtures(context.Background(), "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewObjectFixtureStoreValidation(t *testing.T) {
	if _, err := NewObjectFixtureStore(nil, nil, FixtureStoreConfig{Bucket: "b"}); err == nil {
		t.Fatalf("storage is required")
	}
	if _, err := NewObjectFixtureStore(&fakeObjectStorage{}, nil, FixtureStoreConfig{}); err == nil {
		t.Fatalf("bucket is required")
	}
	_, err := NewObjectFixtureStore(&fakeObjectStorage{}, nil, FixtureStoreConfig{Bucket: "b", Compression: "gzip"})
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("unsupported compression should be rejected, got %v", err)
	}
}
