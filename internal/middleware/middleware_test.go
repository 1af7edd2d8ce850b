package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/movienight/internal/testutil"
)

type MiddlewareSuite struct {
	suite.Suite
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) TestTraceGeneratesID() {
	var seen string
	h := Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	s.Len(seen, 27)
	s.Equal(seen, rec.Header().Get(TraceHeader))
}

func (s *MiddlewareSuite) TestTraceReusesClientID() {
	var seen string
	h := Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "client-trace")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	s.Equal("client-trace", seen)
	s.Equal("client-trace", rec.Header().Get(TraceHeader))
}

func (s *MiddlewareSuite) TestTraceReplacesOversizedID() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, strings.Repeat("x", maxTraceLen+1))
	rec := httptest.NewRecorder()
	Trace(http.NotFoundHandler()).ServeHTTP(rec, req)

	s.Len(rec.Header().Get(TraceHeader), 27)
}

func (s *MiddlewareSuite) TestTraceIDOutsideRequest() {
	s.Empty(TraceID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}

func (s *MiddlewareSuite) TestRecoveryWritesDefaultResponse() {
	logger, logs := testutil.CaptureLogger()
	h := Trace(Recovery(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/explode", nil))

	s.Equal(http.StatusInternalServerError, rec.Code)
	entry, ok := logs.Find("panic recovered")
	s.Require().True(ok)
	s.Equal("boom", entry["error"])
	s.Equal("/explode", entry["path"])
	s.Equal(rec.Header().Get(TraceHeader), entry["trace_id"])
	s.Contains(entry["stack"], "runtime/debug.Stack")
}

func (s *MiddlewareSuite) TestRecoveryUsesCustomHandler() {
	h := Recovery(testutil.NopLogger(), func(w http.ResponseWriter, _ *http.Request, err any) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, err.(string))
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("custom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	s.Equal(http.StatusTeapot, rec.Code)
	s.Equal("custom", rec.Body.String())
}

func (s *MiddlewareSuite) TestRecoveryRepanicsAbort() {
	h := Recovery(testutil.NopLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	s.PanicsWithValue(http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func (s *MiddlewareSuite) TestLoggingRecordsStatusAndSize() {
	logger, logs := testutil.CaptureLogger()
	h := Trace(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "hello")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things", nil))

	entry, ok := logs.Find("http request")
	s.Require().True(ok)
	s.Equal("INFO", entry["level"])
	s.Equal("POST", entry["method"])
	s.Equal("/things", entry["path"])
	s.EqualValues(http.StatusCreated, entry["status"])
	s.EqualValues(5, entry["size"])
	s.Equal(rec.Header().Get(TraceHeader), entry["trace_id"])
}

func (s *MiddlewareSuite) TestLoggingServerErrorsAtErrorLevel() {
	logger, logs := testutil.CaptureLogger()
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entry, ok := logs.Find("http request")
	s.Require().True(ok)
	s.Equal("ERROR", entry["level"])
}

func (s *MiddlewareSuite) TestWrapResponseWriterIsIdempotent() {
	rw := WrapResponseWriter(httptest.NewRecorder())
	s.Same(rw, WrapResponseWriter(rw))
	s.Equal(http.StatusOK, rw.Status())
}

func (s *MiddlewareSuite) TestSecurityHeaders() {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
	s.Equal("DENY", rec.Header().Get("X-Frame-Options"))
	s.Equal("no-referrer", rec.Header().Get("Referrer-Policy"))
	s.Equal("no-store", rec.Header().Get("Cache-Control"))
}

func TestMaxBodySize(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	h := MaxBodySize(8, nil)(readAll)

	tests := []struct {
		name   string
		body   string
		chunk  bool
		status int
	}{
		{name: "within limit", body: "12345678", status: http.StatusNoContent},
		{name: "declared too large", body: "123456789", status: http.StatusRequestEntityTooLarge},
		{name: "streamed too large", body: "123456789", chunk: true, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.chunk {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
