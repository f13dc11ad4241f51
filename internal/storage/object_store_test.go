package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeadmin/api/internal/config"
)

func TestNewObjectStoreParsesURLEndpoint(t *testing.T) {
	store, err := NewObjectStore(config.ArchiveConfig{
		Endpoint:  "https://minio.internal:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "logs",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio.internal:9000", store.client.EndpointURL().Host)
	assert.Equal(t, "https", store.client.EndpointURL().Scheme)
}

func TestNewObjectStoreRequiresEndpoint(t *testing.T) {
	_, err := NewObjectStore(config.ArchiveConfig{Bucket: "logs"})
	assert.Error(t, err)
}
