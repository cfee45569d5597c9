package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const defaultRegion = "eu-west-2"

// LoadSDKConfig builds the AWS SDK config for the configured region,
// pointing every client at EndpointURL when one is set (LocalStack).
func (c AWSConfig) LoadSDKConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(c.EndpointURL))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", c.Region, err)
	}
	return cfg, nil
}

// SecretProviderFor picks the secret provider before Config exists, reading
// APP_ENV, AWS_REGION and AWS_ENDPOINT_URL through getenv. Local development
// resolves no secrets.
func SecretProviderFor(getenv func(string) string) SecretProvider {
	if getenv("APP_ENV") == localEnv {
		return nil
	}
	awsCfg := AWSConfig{Region: getenv("AWS_REGION"), EndpointURL: getenv("AWS_ENDPOINT_URL")}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}
	return NewSSMProvider(awsCfg)
}
