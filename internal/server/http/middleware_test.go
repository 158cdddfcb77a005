package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/noteskeeper/internal/upload"
)

func TestRecoverMW(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	s := &Server{log: zap.New(core)}
	r := gin.New()
	r.Use(s.recoverMW())
	r.Any("/api", func(*gin.Context) { panic("boom") })
	r.GET("/notes", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "boom")

	require.Equal(t, 2, logs.FilterMessage("panic").Len())
}

func TestRequestLogMW(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	s := &Server{log: zap.New(core)}
	r := gin.New()
	r.Use(s.requestLogMW())
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api?action=download_file&csrf_token=deadbeef", nil))
	rid := rec.Header().Get("X-Request-ID")
	require.Len(t, rid, 36)

	entries := logs.FilterMessage("http").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/api", fields["path"])
	require.EqualValues(t, http.StatusNoContent, fields["status"])
	require.Equal(t, rid, fields["request_id"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			require.NotContains(t, s, "deadbeef")
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("X-Request-ID", "upstream-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, "upstream-1", rec.Header().Get("X-Request-ID"))
}

func TestRoutes_PanicReachesAccessLog(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	s := &Server{log: zap.New(core), uploads: upload.NewSpooler(1024, t.TempDir())}
	r := s.routes()
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Equal(t, 1, logs.FilterMessage("panic").Len())
	entries := logs.FilterMessage("http").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, http.StatusInternalServerError, entries[0].ContextMap()["status"])
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newHarness(t, backend())
	out := h.decode(h.get("/healthz"))
	require.Equal(t, "ok", out["status"])
}

func TestHealthz_LeavesNoSessions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, backend())
	for range 50 {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Result().Cookies())
	}
	require.Equal(t, 0, h.store.Len())
}

func TestCookielessRequests_StoreOnlyIssuedSessions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, backend())
	for range 10 {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api?action=get_notes", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 0, h.store.Len(), "rejected API calls keep nothing")

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, h.store.Len(), "a rendered form hands out its token")

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api?action=get_csrf_token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, h.store.Len())
}
