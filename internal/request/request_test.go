package request

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRequestReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(0))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	body, err := c.MakeRequest(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestMakeRequestNonSuccessIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "denied")
	}))
	defer srv.Close()

	c := New(WithMaxRetries(0))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	body, err := c.MakeRequest(req)
	require.Error(t, err)

	httpErr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Equal(t, "denied", httpErr.Body)
	// The body comes back alongside the error.
	assert.Equal(t, "denied", string(body))
}

func TestDoRetriesRetryableStatus(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := New(WithMaxRetries(1))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	body, err := c.MakeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 2, attempts)
}

func TestDoDoesNotRetryNonRetryableStatus(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.MakeRequest(req)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDefaultHeadersDoNotOverrideRequest(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	c := New(WithMaxRetries(0), WithHeaders(map[string]string{"Authorization": "Bearer default"}))

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = c.MakeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer default", got)

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer explicit")
	_, err = c.MakeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer explicit", got)
}

func TestJoinURL(t *testing.T) {
	joined, err := JoinURL("https://api.example.com", "v2", "items?page=2")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v2/items?page=2", joined)

	joined, err = JoinURL("https://api.example.com/", "/v2/", "items")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v2/items", joined)
}

func TestParseRateLimit(t *testing.T) {
	assert.Nil(t, ParseRateLimit(""))
	assert.Nil(t, ParseRateLimit("fast"))

	perMinute := ParseRateLimit("120/minute")
	require.NotNil(t, perMinute)
	assert.InDelta(t, 2.0, float64(perMinute.Limit()), 0.01)
	assert.Equal(t, 30, perMinute.Burst())

	perSecond := ParseRateLimit("10/second")
	require.NotNil(t, perSecond)
	assert.InDelta(t, 10.0, float64(perSecond.Limit()), 0.01)
	assert.Equal(t, 50, perSecond.Burst())
}

func TestWithTimeout(t *testing.T) {
	c := New(WithTimeout(5 * time.Second))
	assert.Equal(t, 5*time.Second, c.timeout)
}
