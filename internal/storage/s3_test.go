package storage

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	mc "github.com/minio/minio-go/v7"
	mccreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

// setupMinio starts a MinIO container, provisions a bucket and returns a
// service pointed at it.
func setupMinio(t *testing.T) S3Service {
	t.Helper()

	ctx := context.Background()

	container, err := minio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		minio.WithUsername("minioadmin"),
		minio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(context.Background())) })

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	mcClient, err := mc.New(endpoint, &mc.Options{
		Creds:  mccreds.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)
	require.NoError(t, mcClient.MakeBucket(ctx, "dmkit-test", mc.MakeBucketOptions{}))

	service, err := NewS3Service(S3Config{
		Bucket:    "dmkit-test",
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	return service
}

func TestS3Service_RoundTrip_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	service := setupMinio(t)
	ctx := context.Background()

	key := "archives/npn1_abc/fgummel_def.zip"
	payload := []byte("simulation archive payload")

	require.NoError(t, service.Upload(ctx, key, bytes.NewReader(payload)))

	data, err := service.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	url, err := service.GenerateDownloadURL(ctx, key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http"))

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, service.Delete(ctx, key))

	_, err = service.Download(ctx, key)
	assert.Error(t, err)
}

func TestNewS3ServiceRequiresBucket(t *testing.T) {
	_, err := NewS3Service(S3Config{})
	assert.Error(t, err)
}
