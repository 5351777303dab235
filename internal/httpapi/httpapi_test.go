package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	received []types.ServerRecords
	fail     bool
}

func (f *fakeSink) WriteBatch(_ context.Context, records types.ServerRecords) error {
	if f.fail {
		return assert.AnError
	}
	f.received = append(f.received, records)
	return nil
}

var testSecret = []byte("test-secret")

func signedToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func TestHandleIngest_RejectsMissingToken(t *testing.T) {
	sink := &fakeSink{}
	srv := New(sink, zap.NewNop(), testSecret)

	req := httptest.NewRequest(http.MethodPost, "/drift", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleIngest_AcceptsValidBatch(t *testing.T) {
	sink := &fakeSink{}
	srv := New(sink, zap.NewNop(), testSecret)

	body := `{"record_type":"Custom","custom":[{"metric":"x","value":1.0}]}`
	req := httptest.NewRequest(http.MethodPost, "/drift", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+signedToken(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sink.received, 1)
	assert.Equal(t, types.RecordCustom, sink.received[0].RecordType)
}

func TestHandleIngest_WriteFailureReturns500WithStructuredError(t *testing.T) {
	sink := &fakeSink{fail: true}
	srv := New(sink, zap.NewNop(), testSecret)

	body := `{"record_type":"Custom","custom":[{"metric":"x","value":1.0}]}`
	req := httptest.NewRequest(http.MethodPost, "/drift", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+signedToken(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestHealthz_ReturnsOK(t *testing.T) {
	srv := New(&fakeSink{}, zap.NewNop(), testSecret)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
