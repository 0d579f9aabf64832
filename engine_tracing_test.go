package shopAuth

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newSpanRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec, tp
}

func spanNamed(rec *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func TestValidateRecordsSpan(t *testing.T) {
	rec, tp := newSpanRecorder(t)
	env := newTestEnv(t, withTracerProvider(tp))
	env.registerVerified(t, "a@x.com", "alice")
	login := env.login(t, "a@x.com")
	ctx := context.Background()

	tests := []struct {
		name     string
		token    string
		mode     ValidationMode
		wantKind ErrorKind
	}{
		{name: "jwt only", token: login.AccessToken, mode: ModeJWTOnly},
		{name: "strict", token: login.AccessToken, mode: ModeStrict},
		{name: "garbage", token: "not-a-token", mode: ModeJWTOnly, wantKind: KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(spanNamed(rec, "shopauth.validate"))
			_, err := env.engine.Validate(ctx, tt.token, tt.mode)
			if tt.wantKind == "" && err != nil {
				t.Fatalf("Validate failed: %v", err)
			}

			spans := spanNamed(rec, "shopauth.validate")
			if len(spans) != before+1 {
				t.Fatalf("validate spans = %d, want %d", len(spans), before+1)
			}
			span := spans[len(spans)-1]

			attrs := map[attribute.Key]attribute.Value{}
			for _, kv := range span.Attributes() {
				attrs[kv.Key] = kv.Value
			}
			if got := attrs["shopauth.strict"].AsBool(); got != (tt.mode == ModeStrict) {
				t.Fatalf("shopauth.strict = %v", got)
			}

			if tt.wantKind == "" {
				if span.Status().Code == codes.Error {
					t.Fatalf("successful validation marked as error: %+v", span.Status())
				}
				return
			}
			requireKind(t, err, tt.wantKind)
			if span.Status().Code != codes.Error || attrs["shopauth.error_kind"].AsString() != string(tt.wantKind) {
				t.Fatalf("unexpected failure span: status=%+v attrs=%v", span.Status(), attrs)
			}
		})
	}
}
