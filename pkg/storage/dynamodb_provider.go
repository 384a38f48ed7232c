package storage

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// DynamoDBProvider implements the StorageProvider interface using DynamoDB
type DynamoDBProvider struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// DynamoDBProviderConfig contains configuration for the DynamoDB provider
type DynamoDBProviderConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	TablePrefix string
	Endpoint    string // Optional, for local DynamoDB
}

// NewDynamoDBProvider creates a new DynamoDB storage provider
func NewDynamoDBProvider(config DynamoDBProviderConfig) (*DynamoDBProvider, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	// Set credentials if provided
	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		)
	}

	// Set endpoint for local DynamoDB if provided
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoDBProviderWithClient(dynamodb.New(sess), config.TablePrefix), nil
}

// NewDynamoDBProviderWithClient creates a new DynamoDB storage provider with a custom client
// This is primarily used for testing with mock clients
func NewDynamoDBProviderWithClient(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBProvider {
	return &DynamoDBProvider{
		client:    client,
		tableName: tablePrefix + "preferences",
	}
}

// TableName returns the preferences table name
func (p *DynamoDBProvider) TableName() string {
	return p.tableName
}

// Initialize creates the preferences table if it doesn't exist
func (p *DynamoDBProvider) Initialize() error {
	_, err := p.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(p.tableName),
	})
	if err == nil {
		return nil
	}

	aerr, ok := err.(awserr.Error)
	if !ok || aerr.Code() != dynamodb.ErrCodeResourceNotFoundException {
		return fmt.Errorf("failed to check if preferences table exists: %w", err)
	}

	_, err = p.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(p.tableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("Namespace"),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String("Key"),
				AttributeType: aws.String("S"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("Namespace"),
				KeyType:       aws.String("HASH"),
			},
			{
				AttributeName: aws.String("Key"),
				KeyType:       aws.String("RANGE"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
	if err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}

	err = p.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(p.tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to wait for preferences table creation: %w", err)
	}
	return nil
}

// Close cleans up resources
func (p *DynamoDBProvider) Close() error {
	// Nothing to close for DynamoDB client
	return nil
}

// GetPreferenceStore returns the store for a namespace
func (p *DynamoDBProvider) GetPreferenceStore(namespace string) (PreferenceStore, error) {
	namespace, err := validNamespace(namespace)
	if err != nil {
		return nil, err
	}
	return &DynamoDBPreferenceStore{client: p.client, tableName: p.tableName, namespace: namespace}, nil
}

// dynamoDBPreferenceItem represents a preference item in DynamoDB
type dynamoDBPreferenceItem struct {
	Namespace string `json:"Namespace"`
	Key       string `json:"Key"`
	Value     string `json:"Value"`
	UpdatedAt int64  `json:"UpdatedAt"`
}

// DynamoDBPreferenceStore implements the PreferenceStore interface using DynamoDB
type DynamoDBPreferenceStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
	namespace string
}

func (s *DynamoDBPreferenceStore) key(key string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"Namespace": {S: aws.String(s.namespace)},
		"Key":       {S: aws.String(key)},
	}
}

func (s *DynamoDBPreferenceStore) get(key string) (string, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get preference: %w", err)
	}
	if result.Item == nil {
		return "", ErrPreferenceNotFound
	}

	var item dynamoDBPreferenceItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return "", fmt.Errorf("failed to unmarshal preference: %w", err)
	}
	return item.Value, nil
}

// GetItem returns the value for key
func (s *DynamoDBPreferenceStore) GetItem(key string) (string, bool, error) {
	return lookup(s.get(key))
}

// SetItem stores value under key
func (s *DynamoDBPreferenceStore) SetItem(key, value string) error {
	av, err := dynamodbattribute.MarshalMap(dynamoDBPreferenceItem{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal preference: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// RemoveItem deletes key
func (s *DynamoDBPreferenceStore) RemoveItem(key string) error {
	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}
