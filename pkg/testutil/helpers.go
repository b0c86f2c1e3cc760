package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRequestID is set on every request built by NewHTTPRequest
const TestRequestID = "test-request"

// NewHTTPRequest builds a handler request with body encoded as JSON
func NewHTTPRequest(method, path string, body interface{}) *http.Request {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic("testutil: cannot encode request body: " + err.Error())
		}
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-Request-ID", TestRequestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// ExecuteRequest serves req and returns the recorded response
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AssertStatus asserts the response status code, printing the body on mismatch
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code. Body: %s", rr.Body.String())
}

// ParseJSONBody decodes the whole response body into target
func ParseJSONBody(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), target), "failed to parse response body: %s", rr.Body.String())
}

// ParseData decodes the data field of a success envelope into target
func ParseData(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	ParseJSONBody(t, rr, &env)
	require.True(t, env.Success, "expected a success envelope: %s", rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, target))
}

// TestContext returns a context cancelled after timeout or at test end
func TestContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// SkipIfShort skips integration tests under -short
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// FixedClock returns a clock func that always reports at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
