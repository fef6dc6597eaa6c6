// Package mainconfig holds the wiring shared by the server and Lambda
// entrypoints.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/helenaexplora/explora-platform/internal/config"
)

// LoadAWSConfig builds the SDK configuration for the SES and Bedrock
// clients. Static keys take precedence over the default credential chain,
// and AWS_ENDPOINT_OVERRIDE points every client at one endpoint (LocalStack).
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}

	key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey)
	if key != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}
	return awsCfg, nil
}

// Loader adapts LoadAWSConfig to the bootstrap options signature.
func Loader(cfg *appconfig.Config) func(context.Context) (aws.Config, error) {
	return func(ctx context.Context) (aws.Config, error) {
		return LoadAWSConfig(ctx, cfg)
	}
}
