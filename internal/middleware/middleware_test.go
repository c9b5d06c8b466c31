package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/geoduel/internal/testutil"
)

// hijackableRecorder is a recorder whose connection can be taken over
type hijackableRecorder struct {
	*httptest.ResponseRecorder
	server net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.server, bufio.NewReadWriter(bufio.NewReader(h.server), bufio.NewWriter(h.server)), nil
}

func TestRecoveryWritesErrorResponse(t *testing.T) {
	handler := Recovery(testutil.NopLogger(), DefaultPanicHandler)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRecoverySkipsResponseAfterHijack(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	called := false
	panicHandler := func(http.ResponseWriter, *http.Request, any) { called = true }
	handler := Recovery(testutil.NopLogger(), panicHandler)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, _, err := http.NewResponseController(w).Hijack()
		require.NoError(t, err)
		defer conn.Close()
		panic("after upgrade")
	}))

	rr := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder(), server: server}
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/wg", nil))

	assert.False(t, called)
}

func TestRecoveryRepanicsAbort(t *testing.T) {
	handler := Recovery(testutil.NopLogger(), DefaultPanicHandler)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLoggingCapturesStatusAndSize(t *testing.T) {
	var captured *ResponseWriter
	handler := Logging(testutil.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		captured = w.(*ResponseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, captured)
	assert.Equal(t, http.StatusTeapot, captured.Status())
	assert.Equal(t, 15, captured.Size())
}

func TestLoggingPassesHijackThrough(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	var status int
	handler := Logging(testutil.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, _, err := http.NewResponseController(w).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
		status = w.(*ResponseWriter).Status()
	}))

	rr := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder(), server: server}
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/wg", nil))

	assert.Equal(t, http.StatusSwitchingProtocols, status)
}
