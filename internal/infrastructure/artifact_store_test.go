package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/yourusername/dl-client/internal/domain"
)

func newMemStore(t *testing.T) (*ArtifactStore, *blob.Bucket) {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })
	return NewArtifactStore(bucket, "download", nil), bucket
}

func TestArtifactStore_Save(t *testing.T) {
	ctx := context.Background()
	store, bucket := newMemStore(t)

	key, err := store.Save(ctx, "clip.mp4", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", key)

	data, err := bucket.ReadAll(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	key, err = store.Save(ctx, "index.html", []byte("<p>"))
	require.NoError(t, err)
	attrs, err := bucket.Attributes(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", attrs.ContentType)
}

func TestArtifactStore_SaveNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store, bucket := newMemStore(t)

	keys := []string{}
	for _, payload := range []string{"one", "two", "three"} {
		key, err := store.Save(ctx, "clip.mp4", []byte(payload))
		require.NoError(t, err)
		keys = append(keys, key)
	}
	assert.Equal(t, []string{"clip.mp4", "clip (1).mp4", "clip (2).mp4"}, keys)

	data, err := bucket.ReadAll(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)
}

func TestArtifactStore_SaveSanitizes(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore(t)

	key, err := store.Save(ctx, "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "passwd", key)

	key, err = store.Save(ctx, "..", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "download", key)

	key, err = store.Save(ctx, "README", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "README", key)

	key, err = store.Save(ctx, "README", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "README (1)", key)
}

func TestOpenArtifactStore_Directory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")

	store, err := OpenArtifactStore(ctx, &domain.OutputConfig{Dir: dir}, "download", nil)
	require.NoError(t, err)
	defer store.Close()

	key, err := store.Save(ctx, "song.mp3", []byte("abc"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
	assert.Equal(t, dir+"/song.mp3", store.Location(key))
}

func TestOpenArtifactStore_BucketURL(t *testing.T) {
	store, err := OpenArtifactStore(context.Background(), &domain.OutputConfig{BucketURL: "mem://"}, "download", nil)
	require.NoError(t, err)
	defer store.Close()

	key, err := store.Save(context.Background(), "a.bin", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "mem://a.bin", store.Location(key))
}

func TestOpenArtifactStore_UnknownScheme(t *testing.T) {
	_, err := OpenArtifactStore(context.Background(), &domain.OutputConfig{BucketURL: "nope://x"}, "download", nil)
	assert.Error(t, err)
}
