package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacy/pharmacy-backend/internal/report/handler"
	"github.com/pharmacy/pharmacy-backend/internal/report/repository"
	"github.com/pharmacy/pharmacy-backend/internal/report/service"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	"github.com/pharmacy/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordedAt = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

func newRouter(m *testutil.MockDB) http.Handler {
	recorder := service.NewRecorder(repository.NewReportRequestRepository(m.DB), logger.Nop()).
		WithClock(testutil.FixedClock(recordedAt))
	r := chi.NewRouter()
	handler.NewReportHandler(recorder, logger.Nop()).Mount(r)
	return r
}

func TestReportHandler_Record(t *testing.T) {
	m := testutil.NewMockDB(t)
	defer m.Close()

	m.Mock.ExpectQuery("INSERT INTO report_requests").
		WithArgs("MEDICATIONS", recordedAt).
		WillReturnRows(testutil.MockRows("id", "report_name", "request_count", "last_request_time").
			AddRow(1, "MEDICATIONS", 3, recordedAt))

	rr := testutil.ExecuteRequest(newRouter(m),
		testutil.NewHTTPRequest(http.MethodPost, "/report/record?reportName=MEDICATIONS", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body struct {
		Success bool                     `json:"success"`
		Data    repository.ReportRequest `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	assert.True(t, body.Success)
	assert.Equal(t, int64(3), body.Data.RequestCount)
	m.ExpectationsWereMet(t)
}

func TestReportHandler_RecordRejectsUnknownReport(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "missing name", path: "/report/record"},
		{name: "unknown name", path: "/report/record?reportName=SALARIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMockDB(t)
			defer m.Close()

			rr := testutil.ExecuteRequest(newRouter(m), testutil.NewHTTPRequest(http.MethodPost, tt.path, nil))
			testutil.AssertStatus(t, rr, http.StatusBadRequest)

			var body map[string]json.RawMessage
			testutil.ParseJSONBody(t, rr, &body)
			assert.Contains(t, string(body["error"]), "VALIDATION_ERROR")
			m.ExpectationsWereMet(t)
		})
	}
}

func TestReportHandler_List(t *testing.T) {
	m := testutil.NewMockDB(t)
	defer m.Close()

	m.Mock.ExpectQuery("SELECT id, report_name, request_count, last_request_time FROM report_requests ORDER BY").
		WillReturnRows(testutil.MockRows("id", "report_name", "request_count", "last_request_time").
			AddRow(2, "CUSTOMER_ORDERS", 1, recordedAt).
			AddRow(1, "MEDICATIONS", 4, recordedAt))

	rr := testutil.ExecuteRequest(newRouter(m), testutil.NewHTTPRequest(http.MethodGet, "/report/requests", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body struct {
		Data []repository.ReportRequest `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	require.Len(t, body.Data, 2)
	assert.Equal(t, int64(2), body.Meta.Total)
	assert.Equal(t, "CUSTOMER_ORDERS", body.Data[0].ReportName)
	m.ExpectationsWereMet(t)
}

func TestReportHandler_GetUnusedReport(t *testing.T) {
	m := testutil.NewMockDB(t)
	defer m.Close()

	m.Mock.ExpectQuery("FROM report_requests WHERE report_name").
		WithArgs("TOTAL_ORDERS").
		WillReturnRows(testutil.MockRows("id", "report_name", "request_count", "last_request_time"))

	rr := testutil.ExecuteRequest(newRouter(m), testutil.NewHTTPRequest(http.MethodGet, "/report/requests/total_orders", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	m.ExpectationsWereMet(t)
}
