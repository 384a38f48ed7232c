package storage

import (
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Load .env file from project root
	_ = godotenv.Load("../../.env")
}

func TestDynamoDBProviderWithMock(t *testing.T) {
	client := NewMockDynamoDBAPI()
	provider := NewDynamoDBProviderWithClient(client, "test_")
	assert.Equal(t, "test_preferences", provider.TableName())

	require.NoError(t, provider.Initialize())
	require.NoError(t, provider.Initialize(), "initialize is idempotent")

	store, err := provider.GetPreferenceStore("default")
	require.NoError(t, err)
	testPreferenceStore(t, store)
	testNamespaces(t, provider)
	assert.NoError(t, provider.Close())
}

// TestDynamoDBProvider runs against a local DynamoDB or AWS
// It will be skipped if the required environment variables are not set
func TestDynamoDBProvider(t *testing.T) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")

	if (accessKey == "" || secretKey == "") && endpoint == "" {
		t.Skip("Skipping DynamoDB tests as neither AWS credentials nor local endpoint are set")
	}

	provider, err := NewDynamoDBProvider(DynamoDBProviderConfig{
		Region:      "us-east-1",
		AccessKey:   accessKey,
		SecretKey:   secretKey,
		TablePrefix: "crewdeck_test_",
		Endpoint:    endpoint,
	})
	if err != nil {
		t.Fatalf("Failed to create DynamoDB provider: %v", err)
	}
	require.NoError(t, provider.Initialize())

	store, err := provider.GetPreferenceStore("test")
	require.NoError(t, err)
	testPreferenceStore(t, store)
}
