package storage

import (
	"testing"

	"github.com/csipbllm/backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"localhost:9000":        "localhost:9000",
		"http://localhost:9000": "localhost:9000",
		"https://minio.local/":  "minio.local",
		"  http://minio:9000  ": "minio:9000",
		"":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeEndpoint(in), in)
	}
}

func TestNewMinIOClient(t *testing.T) {
	_, err := NewMinIOClient(config.ObjectStorageConfig{})
	assert.Error(t, err)

	client, err := NewMinIOClient(config.ObjectStorageConfig{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "csipb-materials",
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", client.EndpointURL().Host)
}
