package s3store_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sagarc03/remotestore"
	"github.com/sagarc03/remotestore/s3store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

var (
	minioEndpoint string
	minioErr      error
	minioOnce     sync.Once
)

// getSharedMinio starts one MinIO container for the package.
func getSharedMinio(t *testing.T) string {
	t.Helper()

	minioOnce.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.Run(ctx,
			"minio/minio:latest",
			testcontainers.WithExposedPorts("9000/tcp"),
			testcontainers.WithEnv(map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			}),
			testcontainers.WithCmd("server", "/data"),
			testcontainers.WithWaitStrategy(wait.ForHTTP("/minio/health/live").WithPort("9000/tcp")),
		)
		if err != nil {
			minioErr = err
			return
		}

		minioEndpoint, minioErr = container.PortEndpoint(ctx, "9000/tcp", "http")
	})

	if minioErr != nil {
		t.Skipf("minio not available: %v", minioErr)
	}
	return minioEndpoint
}

func newStore(t *testing.T, prefix string) *s3store.Store {
	t.Helper()

	store, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:        getSharedMinio(t),
		Region:          "us-east-1",
		Bucket:          "remotestore-test",
		KeyPrefix:       prefix,
		AccessKeyID:     minioUser,
		SecretAccessKey: minioPassword,
		CreateBucket:    true,
	})
	require.NoError(t, err)
	return store
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := s3store.New(context.Background(), s3store.Config{})
	assert.ErrorIs(t, err, remotestore.ErrInvalidInput)
}

func TestStore_Key(t *testing.T) {
	store := newStore(t, "blobs/")
	assert.Equal(t, "blobs/alice/pics/cat.png", store.Key("alice", "pics/cat.png"))
}

func TestStore_WriteGetDelete(t *testing.T) {
	store := newStore(t, t.Name()+"/")
	ctx := context.Background()

	_, err := store.Get(ctx, "alice", "pics/cat.png")
	assert.ErrorIs(t, err, remotestore.ErrNotFound)

	written, err := store.Write(ctx, "alice", "pics/cat.png", strings.NewReader("\x89PNG"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), written)

	r, err := store.Get(ctx, "alice", "pics/cat.png")
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()
	assert.Equal(t, "\x89PNG", string(got))

	require.NoError(t, store.Delete(ctx, "alice", "pics/cat.png"))

	err = store.Delete(ctx, "alice", "pics/cat.png")
	assert.ErrorIs(t, err, remotestore.ErrNotFound)
}

func TestStore_InvalidIdentity(t *testing.T) {
	store := newStore(t, "")
	ctx := context.Background()

	_, err := store.Write(ctx, "", "a.bin", strings.NewReader("x"))
	assert.ErrorIs(t, err, remotestore.ErrInvalidInput)

	_, err = store.Get(ctx, "alice", "../a.bin")
	assert.ErrorIs(t, err, remotestore.ErrInvalidInput)
}
