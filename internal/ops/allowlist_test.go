package ops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAllowList(t *testing.T) {
	allow, err := ParseAllowList([]string{"10.0.0.0/8", " 192.168.1.5 ", "::1/128", ""})
	require.NoError(t, err)

	assert.True(t, allow.Allows("10.1.2.3"))
	assert.True(t, allow.Allows("192.168.1.5"))
	assert.True(t, allow.Allows("::ffff:10.0.0.1"))
	assert.True(t, allow.Allows("::1"))
	assert.False(t, allow.Allows("192.168.1.6"))
	assert.False(t, allow.Allows("garbage"))

	open, err := ParseAllowList(nil)
	require.NoError(t, err)
	assert.True(t, open.Allows("8.8.8.8"))

	_, err = ParseAllowList([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestRouterHealthAndAllowList(t *testing.T) {
	allow, err := ParseAllowList([]string{"127.0.0.1"})
	require.NoError(t, err)

	healthy := NewRouter(map[string]Pinger{
		"database": PingerFunc(func(context.Context) error { return nil }),
	}, allow, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"database":"ok"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec = httptest.NewRecorder()
	healthy.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:50000"
	rec = httptest.NewRecorder()
	healthy.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	broken := NewRouter(map[string]Pinger{
		"redis": PingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, allow, zaptest.NewLogger(t))
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
