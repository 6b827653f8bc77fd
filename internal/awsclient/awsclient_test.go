package awsclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StaticCredentials(t *testing.T) {
	ctx := context.Background()
	clients, err := New(ctx, Config{
		Region:           "ap-southeast-2",
		AccessKeyID:      "test-access-key",
		SecretAccessKey:  "test-secret-key",
		S3Endpoint:       "http://localhost:4566",
		DynamoDBEndpoint: "http://localhost:8000",
	})
	require.NoError(t, err)

	assert.NotNil(t, clients.S3)
	assert.NotNil(t, clients.DynamoDB)
	assert.NotNil(t, clients.SSM)
	assert.NotNil(t, clients.SecretsManager)
}

func TestLoadAWSConfig_Region(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), Config{
		Region:          "us-west-2",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k", creds.AccessKeyID)
}
