/*
Package secrets loads credentials for Tollgate's outbound calls, such as the
collaboration API bearer token.

# Providers

Two providers are available and can be chained:

  - EnvProvider reads TOLLGATE_SECRET_<NAME> style environment variables.
  - FileProvider reads one file per secret from a directory, the layout of a
    Kubernetes secret mount. Files must be 0600 or 0400. With watching
    enabled, writes to the directory drop cached values so a rotated token
    is used on the next call.

# Usage

	files, err := secrets.NewFileProvider("/var/run/secrets/tollgate", true)
	if err != nil {
		return err
	}
	manager := secrets.NewManager(
		[]secrets.Provider{files, secrets.NewEnvProvider("TOLLGATE_SECRET_")},
		secrets.CacheConfig{Enabled: true, TTL: 5 * time.Minute},
	)
	defer manager.Close()

	client, err := collab.NewClient(cfg, collab.TokenSourceFunc(manager.Lookup("collab-token")))

Providers are tried in order. A provider that does not have the secret
returns an error matching ErrNotFound and the next one is tried; any other
error is remembered and returned if no provider has the secret.

Secret names are never logged in full.
*/
package secrets
