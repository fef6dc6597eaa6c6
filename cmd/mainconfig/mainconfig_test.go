package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/helenaexplora/explora-platform/internal/config"
)

func TestLoadAWSConfigStaticCredentialsAndEndpoint(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "sa-east-1",
		AWSAccessKeyID:      " test ",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := Loader(cfg)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sa-east-1", awsCfg.Region)
	assert.Equal(t, "http://localhost:4566", aws.ToString(awsCfg.BaseEndpoint))

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_ENDPOINT_URL", "")

	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"})
	require.NoError(t, err)
	assert.Nil(t, awsCfg.BaseEndpoint)
}
