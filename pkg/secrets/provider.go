package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is matched by errors from a provider that does not hold the
// requested secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from a backend.
type Provider interface {
	// Secret returns the value of the named secret.
	Secret(ctx context.Context, name string) (string, error)

	// Name returns the provider name ("env", "file").
	Name() string
}

// Refresher is implemented by providers that cache values and can drop
// them on demand.
type Refresher interface {
	Refresh()
}

// changeNotifier is implemented by providers that detect rotation on
// their own.
type changeNotifier interface {
	OnChange(fn func())
}
