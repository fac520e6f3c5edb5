package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/audit/export"
	"mercator-hq/tollgate/pkg/audit/query"
	"mercator-hq/tollgate/pkg/collab"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/plans"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/plans", s.handlePlans)
	mux.HandleFunc("GET /v1/tenants/{tenant}/plan", s.handleTenantPlan)
	mux.HandleFunc("GET /v1/tenants/{tenant}/rate-limit", s.handleRateLimitStatus)
	mux.HandleFunc("POST /v1/tenants/{tenant}/spaces", s.handleCreateSpace)
	mux.HandleFunc("GET /v1/tenants/{tenant}/audit/export", s.handleAuditExport)
}

type plansResponse struct {
	Plans []*plans.Definition `json:"plans"`
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	enforcer := s.manager.Enforcer()
	if enforcer == nil {
		writeUnavailable(w, "plan enforcement is not configured")
		return
	}
	writeJSON(w, http.StatusOK, plansResponse{Plans: enforcer.Catalog().Definitions()})
}

func (s *Server) handleTenantPlan(w http.ResponseWriter, r *http.Request) {
	enforcer := s.manager.Enforcer()
	if enforcer == nil {
		writeUnavailable(w, "plan enforcement is not configured")
		return
	}
	writeJSON(w, http.StatusOK, enforcer.Resolve(r.Context(), r.PathValue("tenant")))
}

func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	limiter := s.manager.Limiter()
	if limiter == nil {
		writeUnavailable(w, "rate limiting is not configured")
		return
	}

	status, err := limiter.Status(r.Context(), r.PathValue("tenant"))
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Warn("rate limit status failed", "error", err)
		writeUnavailable(w, "rate limit status is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type createSpaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	if s.sites == nil {
		writeUnavailable(w, "the collaboration API is not configured")
		return
	}

	tenant := r.PathValue("tenant")
	var body createSpaceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	ctx := r.Context()
	site, err := limits.Govern(ctx, s.manager, limits.Request{
		TenantID:      tenant,
		Action:        "collab.CreateSite",
		Quota:         string(plans.QuotaClientSpaces),
		CorrelationID: logging.CorrelationID(ctx),
	}, func(ctx context.Context) (*collab.Site, error) {
		return s.sites.CreateSite(ctx, collab.CreateSiteRequest{
			TenantID:    tenant,
			Name:        body.Name,
			Description: body.Description,
		})
	})
	if err != nil {
		s.writeGovernError(w, r, err)
		return
	}

	if s.resources != nil {
		if _, err := s.resources.AdjustResourceCount(ctx, tenant, plans.QuotaClientSpaces, 1); err != nil {
			logging.FromContext(ctx, s.logger).Warn("failed to update client space count", "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeUnavailable(w, "the audit log is not configured")
		return
	}

	tenant := r.PathValue("tenant")
	q, err := parseAuditQuery(r, tenant)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var exporter audit.Exporter
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		exporter = export.NewJSONExporter(false)
	case "csv":
		exporter = export.NewCSVExporter(true)
	default:
		writeBadRequest(w, fmt.Sprintf("unsupported format %q (must be json or csv)", format))
		return
	}

	ctx := r.Context()
	records, err := limits.Govern(ctx, s.manager, limits.Request{
		TenantID:      tenant,
		Action:        "audit.Export",
		Feature:       string(plans.FeatureAuditExport),
		CorrelationID: logging.CorrelationID(ctx),
	}, func(ctx context.Context) ([]*audit.Record, error) {
		return s.auditLog.Query(ctx, q)
	})
	if err != nil {
		s.writeGovernError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := exporter.Export(ctx, records, &buf); err != nil {
		logging.FromContext(ctx, s.logger).Error("audit export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "export_failed"})
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("X-Record-Count", strconv.Itoa(len(records)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}

// parseAuditQuery builds a tenant-scoped query from URL parameters:
// start, end (RFC 3339), action, outcome, limit, offset and order.
func parseAuditQuery(r *http.Request, tenant string) (*audit.Query, error) {
	params := r.URL.Query()
	q := &audit.Query{
		TenantID:  tenant,
		Action:    params.Get("action"),
		Outcome:   audit.Outcome(params.Get("outcome")),
		SortOrder: params.Get("order"),
	}

	for name, dst := range map[string]**time.Time{"start": &q.StartTime, "end": &q.EndTime} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = &t
	}

	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = n
	}

	query.ApplyDefaults(q)
	if err := query.Validate(q); err != nil {
		var qe *audit.QueryError
		if errors.As(err, &qe) && qe.Cause != nil {
			return nil, qe.Cause
		}
		return nil, err
	}
	return q, nil
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: message})
}
