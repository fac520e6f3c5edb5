package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version"`
}

// NewVersionInfo fills GoVersion from the running binary.
func NewVersionInfo(version, commit, buildTime string) VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// LivenessHandler returns an HTTP handler for the liveness endpoint.
//
// Example response:
//
//	{"status": "ok", "timestamp": "2026-10-18T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeStatus(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness endpoint.
//
// Returns:
//   - 200 OK: ready, or degraded (a non-critical dependency is failing)
//   - 503 Service Unavailable: a critical dependency is failing
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "rate_limit_backend": {"status": "unhealthy", "critical": false, "message": "dial tcp: connection refused"},
//	        "audit_store": {"status": "ok", "critical": true}
//	    },
//	    "timestamp": "2026-10-18T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
func VersionHandler(info VersionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeStatus(w, r, http.StatusOK, info)
	}
}

// Paths are the mount points of the health endpoints.
type Paths struct {
	Liveness  string
	Readiness string
	Version   string
}

// Mount registers the liveness, readiness and version endpoints on mux.
// Empty paths fall back to /health, /ready and /version.
func Mount(mux *http.ServeMux, checker *Checker, paths Paths, info VersionInfo) {
	if paths.Liveness == "" {
		paths.Liveness = "/health"
	}
	if paths.Readiness == "" {
		paths.Readiness = "/ready"
	}
	if paths.Version == "" {
		paths.Version = "/version"
	}

	mux.HandleFunc(paths.Liveness, checker.LivenessHandler())
	mux.HandleFunc(paths.Readiness, checker.ReadinessHandler())
	mux.HandleFunc(paths.Version, VersionHandler(info))
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
