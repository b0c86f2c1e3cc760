package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// ReportRequest is the usage counter of one report type
type ReportRequest struct {
	ID              int64      `db:"id" json:"id"`
	ReportName      string     `db:"report_name" json:"report_name"`
	RequestCount    int64      `db:"request_count" json:"request_count"`
	LastRequestTime *time.Time `db:"last_request_time" json:"last_request_time,omitempty"`
}

const reportRequestColumns = `id, report_name, request_count, last_request_time`

// ReportRequestRepository handles report usage counters
type ReportRequestRepository struct {
	db *database.DB
}

// NewReportRequestRepository creates a new report request repository
func NewReportRequestRepository(db *database.DB) *ReportRequestRepository {
	return &ReportRequestRepository{db: db}
}

// Increment counts one use of a report. The first use inserts a counter of 1.
func (r *ReportRequestRepository) Increment(ctx context.Context, name string, at time.Time) (*ReportRequest, error) {
	query := `
		INSERT INTO report_requests (report_name, request_count, last_request_time)
		VALUES ($1, 1, $2)
		ON CONFLICT (report_name) DO UPDATE
		SET request_count = report_requests.request_count + 1,
		    last_request_time = EXCLUDED.last_request_time
		RETURNING ` + reportRequestColumns

	var rr ReportRequest
	if err := r.db.Conn(ctx).QueryRowxContext(ctx, query, name, at).StructScan(&rr); err != nil {
		return nil, database.MapError(err)
	}
	return &rr, nil
}

// GetByName gets the counter of one report
func (r *ReportRequestRepository) GetByName(ctx context.Context, name string) (*ReportRequest, error) {
	var rr ReportRequest
	query := `SELECT ` + reportRequestColumns + ` FROM report_requests WHERE report_name = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &rr, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("report")
		}
		return nil, err
	}
	return &rr, nil
}

// List lists all counters by report name
func (r *ReportRequestRepository) List(ctx context.Context) ([]*ReportRequest, error) {
	var out []*ReportRequest
	query := `SELECT ` + reportRequestColumns + ` FROM report_requests ORDER BY report_name`
	if err := r.db.Conn(ctx).SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}
