package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/errgroup"
)

// ssmBatchSize is the GetParameters name limit.
const ssmBatchSize = 10

type ssmAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider resolves the SecureString parameters behind *_SSM_PARAM
// pointers (database URL, Zendesk key, Slack token). The client is built on
// first use from the same AWS settings as the queue and Lambda clients, so a
// LocalStack endpoint applies to secret resolution too.
type SSMProvider struct {
	aws AWSConfig

	mu     sync.Mutex
	client ssmAPI
}

// NewSSMProvider creates a provider for the given AWS settings.
func NewSSMProvider(awsCfg AWSConfig) *SSMProvider {
	return &SSMProvider{aws: awsCfg}
}

func (p *SSMProvider) api(ctx context.Context) (ssmAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	cfg, err := p.aws.LoadSDKConfig(ctx)
	if err != nil {
		return nil, err
	}
	p.client = ssm.NewFromConfig(cfg)
	return p.client, nil
}

// GetParametersBatch resolves every path with decryption. Batches are
// fetched concurrently; a path SSM does not know fails the call and every
// such path is named in the error.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, paths []string) (map[string]string, error) {
	paths = slices.Compact(slices.Sorted(slices.Values(paths)))
	if len(paths) == 0 {
		return map[string]string{}, nil
	}

	client, err := p.api(ctx)
	if err != nil {
		return nil, err
	}

	batches := slices.Collect(slices.Chunk(paths, ssmBatchSize))
	outputs := make([]*ssm.GetParametersOutput, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, names := range batches {
		g.Go(func() error {
			out, err := client.GetParameters(gctx, &ssm.GetParametersInput{
				Names:          names,
				WithDecryption: aws.Bool(true),
			})
			if err != nil {
				return fmt.Errorf("ssm GetParameters (%s and %d more): %w", names[0], len(names)-1, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(paths))
	var unknown []string
	for _, out := range outputs {
		for _, param := range out.Parameters {
			values[aws.ToString(param.Name)] = aws.ToString(param.Value)
		}
		unknown = append(unknown, out.InvalidParameters...)
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("ssm parameters not found: %s", strings.Join(unknown, ", "))
	}
	return values, nil
}
