package limits

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/tollgate/pkg/limits/enforcement"
	"mercator-hq/tollgate/pkg/limits/plans"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, Option) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return recorder, WithTracer(provider.Tracer("test"))
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestGovern_SpanPerOperation(t *testing.T) {
	recorder, opt := newRecordingTracer(t)
	env := newTestEnv(t, enforcement.Config{}, opt)
	env.subscribe(t, "tenant-a", plans.TierProfessional)

	calls := 0
	err := env.manager.GovernVoid(context.Background(), Request{
		TenantID: "tenant-a",
		Action:   "collab.CreateSite",
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &statusError{status: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("GovernVoid failed: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Name() != "governance.collab.CreateSite" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status().Code)
	}
	if v, ok := spanAttr(span, tracing.AttrTenantID); !ok || v.AsString() != "tenant-a" {
		t.Errorf("tenant attribute = %v", v)
	}
	if v, ok := spanAttr(span, tracing.AttrOutcome); !ok || v.AsString() != "success" {
		t.Errorf("outcome attribute = %v", v)
	}
	if v, ok := spanAttr(span, tracing.AttrAttempts); !ok || v.AsInt64() != 3 {
		t.Errorf("attempts attribute = %v, want 3", v)
	}
	if got := len(span.Events()); got != 3 {
		t.Errorf("expected 3 attempt events, got %d", got)
	}
}

func TestGovern_SpanRecordsDenial(t *testing.T) {
	recorder, opt := newRecordingTracer(t)
	env := newTestEnv(t, enforcement.Config{}, opt)
	env.subscribe(t, "tenant-s", plans.TierStarter)

	err := env.manager.GovernVoid(context.Background(), Request{
		TenantID: "tenant-s",
		Action:   "collab.BulkMove",
		Feature:  string(plans.FeatureBulkOperations),
	}, func(ctx context.Context) error {
		t.Error("operation must not run when the plan denies it")
		return nil
	})
	if err == nil {
		t.Fatal("expected plan denial")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}
	if v, _ := spanAttr(span, tracing.AttrOutcome); v.AsString() != "plan_denied" {
		t.Errorf("outcome attribute = %q, want plan_denied", v.AsString())
	}
	if v, _ := spanAttr(span, tracing.AttrReason); v.AsString() != string(enforcement.ReasonFeatureDenied) {
		t.Errorf("reason attribute = %q", v.AsString())
	}
	if v, _ := spanAttr(span, tracing.AttrPlan); v.AsString() != string(plans.TierStarter) {
		t.Errorf("plan attribute = %q, want starter", v.AsString())
	}
	if v, _ := spanAttr(span, tracing.AttrFeature); v.AsString() != "bulkOperations" {
		t.Errorf("feature attribute = %q", v.AsString())
	}
}
