package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := RunID(ctx); ok {
		t.Fatalf("empty context must not report a run id")
	}

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithRunID(ctx, "run")
	if got, ok := RunID(ctx); !ok || got != "run" {
		t.Fatalf("RunID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "sess")
	if got, ok := SessionID(ctx); !ok || got != "sess" {
		t.Fatalf("SessionID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "")
	if _, ok := SessionID(ctx); ok {
		t.Fatalf("empty session id must report false")
	}
}
