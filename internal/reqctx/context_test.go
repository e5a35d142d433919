package reqctx_test

import (
	"context"
	"testing"

	"pagepass/internal/reqctx"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := reqctx.UserIDFromContext(ctx); ok {
		t.Fatal("expected no user on bare context")
	}

	ctx = reqctx.WithUserID(ctx, "alice")
	ctx = reqctx.WithBookID(ctx, 42)
	ctx = reqctx.WithRequestID(ctx, "req-1")

	if user, ok := reqctx.UserIDFromContext(ctx); !ok || user != "alice" {
		t.Fatalf("unexpected user: %q (ok=%v)", user, ok)
	}
	if id, ok := reqctx.BookIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected book id: %d (ok=%v)", id, ok)
	}
	if rid, ok := reqctx.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("unexpected request id: %q (ok=%v)", rid, ok)
	}
}

func TestEmptyValuesAreIgnored(t *testing.T) {
	ctx := reqctx.WithUserID(context.Background(), "")
	ctx = reqctx.WithRequestID(ctx, "")
	if _, ok := reqctx.UserIDFromContext(ctx); ok {
		t.Fatal("expected empty user to be ignored")
	}
	if _, ok := reqctx.RequestIDFromContext(ctx); ok {
		t.Fatal("expected empty request id to be ignored")
	}
}
