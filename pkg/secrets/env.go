package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider loads secrets from environment variables.
//
// Secret names are upper-cased with hyphens replaced by underscores and
// prefixed, so with prefix "TOLLGATE_SECRET_" the secret "collab-token" is
// read from TOLLGATE_SECRET_COLLAB_TOKEN.
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment variable provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{
		prefix: prefix,
		lookup: os.LookupEnv,
	}
}

// Secret reads the variable for name. An unset or empty variable is
// ErrNotFound.
func (p *EnvProvider) Secret(ctx context.Context, name string) (string, error) {
	envVar := p.EnvVar(name)

	value, ok := p.lookup(envVar)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s (env var: %s)", ErrNotFound, redactSecretName(name), envVar)
	}
	return value, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string {
	return "env"
}

// EnvVar returns the environment variable name for a secret.
func (p *EnvProvider) EnvVar(name string) string {
	return p.prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
