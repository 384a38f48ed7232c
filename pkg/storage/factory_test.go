package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProvider(t *testing.T) {
	// Test memory provider
	memoryProvider, err := NewProvider(ProviderConfig{Type: MemoryProviderType})
	assert.NoError(t, err)
	assert.IsType(t, &MemoryProvider{}, memoryProvider)

	// Test file provider
	_, err = NewProvider(ProviderConfig{Type: FileProviderType})
	assert.Error(t, err)

	fileProvider, err := NewProvider(ProviderConfig{
		Type: FileProviderType,
		File: &FileProviderConfig{Path: filepath.Join(t.TempDir(), "prefs.json")},
	})
	assert.NoError(t, err)
	assert.IsType(t, &FileProvider{}, fileProvider)

	// Test Redis provider; the client connects lazily
	_, err = NewProvider(ProviderConfig{Type: RedisProviderType})
	assert.Error(t, err)

	redisProvider, err := NewProvider(ProviderConfig{
		Type:  RedisProviderType,
		Redis: &RedisProviderConfig{Addr: "localhost:6379"},
	})
	assert.NoError(t, err)
	assert.IsType(t, &RedisProvider{}, redisProvider)
	redisProvider.Close()

	// Test DynamoDB provider with missing config
	_, err = NewProvider(ProviderConfig{Type: DynamoDBProviderType})
	assert.Error(t, err)

	dynamoProvider, err := NewProvider(ProviderConfig{
		Type: DynamoDBProviderType,
		DynamoDB: &DynamoDBProviderConfig{
			Region:      "us-east-1",
			TablePrefix: "test_",
			AccessKey:   "test",
			SecretKey:   "test",
		},
	})
	assert.NoError(t, err)
	assert.IsType(t, &DynamoDBProvider{}, dynamoProvider)

	// Test PostgreSQL provider with missing config
	_, err = NewProvider(ProviderConfig{Type: PostgreSQLProviderType})
	assert.Error(t, err)

	// Test PostgreSQL provider with config
	if os.Getenv("POSTGRES_HOST") != "" {
		postgresProvider, err := NewProvider(ProviderConfig{
			Type: PostgreSQLProviderType,
			PostgreSQL: &PostgreSQLProviderConfig{
				Host:     os.Getenv("POSTGRES_HOST"),
				User:     os.Getenv("POSTGRES_USER"),
				Password: os.Getenv("POSTGRES_PASSWORD"),
				Database: os.Getenv("POSTGRES_DB"),
			},
		})
		assert.NoError(t, err)
		assert.IsType(t, &PostgreSQLProvider{}, postgresProvider)
		postgresProvider.Close()
	}

	// Test unknown provider type
	_, err = NewProvider(ProviderConfig{Type: "unknown"})
	assert.Error(t, err)
}
