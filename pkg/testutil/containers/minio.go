//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"

	"fedlearn/internal/platform/config"
)

// MinIOContainer wraps an S3-compatible MinIO server.
type MinIOContainer struct {
	Container testcontainers.Container
	Config    config.MinIOConfig
}

// NewMinIOContainer starts MinIO. Config has no bucket set; callers choose
// one per suite.
func NewMinIOContainer(t *testing.T) *MinIOContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	if err != nil {
		t.Fatalf("failed to start minio container: %v", err)
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get minio endpoint: %v", err)
	}

	return &MinIOContainer{
		Container: container,
		Config: config.MinIOConfig{
			Endpoint:  endpoint,
			AccessKey: container.Username,
			SecretKey: container.Password,
		},
	}
}
