// Package awsstore holds the AWS-backed blob store and dedup ledger.
package awsstore

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
)

// LoadConfig loads the AWS configuration. A non-empty endpoint, or
// AWS_ENDPOINT_URL, routes every service to that URL (LocalStack). The
// resolved endpoint is returned so callers can switch S3 to path style.
func LoadConfig(ctx context.Context, region, endpoint string) (aws.Config, string, error) {
	if endpoint == "" {
		endpoint = os.Getenv("AWS_ENDPOINT_URL")
	}
	var opts []func(*awsCfg.LoadOptions) error
	if region != "" {
		opts = append(opts, awsCfg.WithRegion(region))
	}
	if endpoint == "" {
		cfg, err := awsCfg.LoadDefaultConfig(ctx, opts...)
		return cfg, "", err
	}
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, r string, _ ...any) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               endpoint,
			HostnameImmutable: true,
			PartitionID:       "aws",
		}, nil
	})
	opts = append(opts, awsCfg.WithEndpointResolverWithOptions(resolver))
	cfg, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	return cfg, endpoint, err
}
