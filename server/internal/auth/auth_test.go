package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// passHandler is a grpc.UnaryHandler that returns ("ok", nil).
func passHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func callWithKey(t *testing.T, g Guard, header, key string) (interface{}, error) {
	t.Helper()
	ctx := context.Background()
	if key != "" {
		ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(header, key))
	}
	return g.UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, passHandler)
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		mode, key string
		want      bool
	}{
		{"apikey", "k", true},
		{"apikey", "", false},
		{"none", "k", false},
		{"", "k", false},
	}
	for _, tc := range tests {
		if got := New(tc.mode, "x-api-key", tc.key).Enabled(); got != tc.want {
			t.Errorf("New(%q, _, %q).Enabled() = %v, want %v", tc.mode, tc.key, got, tc.want)
		}
	}
}

func TestUnary_PassThroughWhenDisabled(t *testing.T) {
	for _, g := range []Guard{New("none", "x-api-key", "secret"), New("apikey", "x-api-key", "")} {
		res, err := g.UnaryInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{}, passHandler)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res != "ok" {
			t.Errorf("result: got %v, want ok", res)
		}
	}
}

func TestUnary_Keys(t *testing.T) {
	g := New("apikey", "X-Pulse-Key", "supersecret")
	tests := []struct {
		name     string
		header   string
		key      string
		wantCode codes.Code
	}{
		{"correct key", "x-pulse-key", "supersecret", codes.OK},
		{"wrong key", "x-pulse-key", "wrong", codes.Unauthenticated},
		{"prefix of key", "x-pulse-key", "super", codes.Unauthenticated},
		{"other header", "x-api-key", "supersecret", codes.Unauthenticated},
		{"no metadata", "", "", codes.Unauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := callWithKey(t, g, tc.header, tc.key)
			if code := status.Code(err); code != tc.wantCode {
				t.Errorf("code: got %v, want %v", code, tc.wantCode)
			}
		})
	}
}

func TestUnary_EmptyMetadata(t *testing.T) {
	g := New("apikey", "x-api-key", "supersecret")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
	_, err := g.UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, passHandler)
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}

// fakeStream carries just a context.
type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f fakeStream) Context() context.Context { return f.ctx }

func TestStream(t *testing.T) {
	g := New("apikey", "x-api-key", "k")
	called := false
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		called = true
		return nil
	}

	err := g.StreamInterceptor()(nil, fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{}, handler)
	if status.Code(err) != codes.Unauthenticated || called {
		t.Fatalf("no key: err=%v called=%v", err, called)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "k"))
	if err := g.StreamInterceptor()(nil, fakeStream{ctx: ctx}, &grpc.StreamServerInfo{}, handler); err != nil {
		t.Fatalf("with key: %v", err)
	}
	if !called {
		t.Error("handler not called with a valid key")
	}
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name string
		g    Guard
		key  string
		want int
	}{
		{"disabled", New("none", "x-api-key", "k"), "", http.StatusNoContent},
		{"correct", New("apikey", "x-api-key", "k"), "k", http.StatusNoContent},
		{"missing", New("apikey", "x-api-key", "k"), "", http.StatusUnauthorized},
		{"wrong", New("apikey", "x-api-key", "k"), "nope", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
			if tc.key != "" {
				req.Header.Set("X-Api-Key", tc.key)
			}
			rec := httptest.NewRecorder()
			tc.g.Middleware(next).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status: got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
