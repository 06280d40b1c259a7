package metrics

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type hijackableRecorder struct {
	*httptest.ResponseRecorder
}

func (hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, nil
}

func TestInstrumentHandler_PreservesHijacker(t *testing.T) {
	var hijackable bool
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, hijackable = w.(http.Hijacker)
	}))

	h.ServeHTTP(hijackableRecorder{httptest.NewRecorder()}, httptest.NewRequest(http.MethodGet, "/events", nil))
	if !hijackable {
		t.Fatal("instrumented writer must support hijacking for websocket upgrades")
	}
}

func TestStatusRecorder_HijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rec.Hijack(); err == nil {
		t.Fatal("expected an error when the underlying writer cannot hijack")
	}
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/":                    "/",
		"/healthz":             "/healthz",
		"/options":             "/options",
		"/options/abc-123":     "/options/:id",
		"/options/abc/execute": "/options/:id/execute",
	}
	for raw, want := range cases {
		if got := canonicalPath(raw); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", raw, got, want)
		}
	}
}
