package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusError, Status(errors.New("boom")))
}

func TestRecordUpload_CountsBytesOnSuccessOnly(t *testing.T) {
	before := testutil.ToFloat64(UploadBytesTotal.WithLabelValues("video/mp4"))

	RecordUpload("video/mp4", StatusSuccess, 100)
	RecordUpload("video/mp4", StatusError, 50)

	after := testutil.ToFloat64(UploadBytesTotal.WithLabelValues("video/mp4"))
	assert.Equal(t, 100.0, after-before)
}

func TestRecordRollback(t *testing.T) {
	before := testutil.ToFloat64(RollbacksTotal.WithLabelValues(StatusError))
	RecordRollback(StatusError)
	assert.Equal(t, before+1, testutil.ToFloat64(RollbacksTotal.WithLabelValues(StatusError)))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordStorageOperation("put", StatusSuccess, 0.01)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mediavault_api_storage_operations_total")
}
