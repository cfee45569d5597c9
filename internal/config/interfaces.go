package config

import "context"

// SecretProvider resolves secret values by path. SSMProvider serves deployed
// environments.
type SecretProvider interface {
	// GetParametersBatch returns path -> plaintext for every resolvable key.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
