package postgres

import (
	"context"
	"errors"

	domain "github.com/partsdesk/api/internal/domain"
	platform "github.com/partsdesk/api/internal/platform/postgres"
	"github.com/partsdesk/api/internal/repositories"
)

// TechnicalReportRepository persists technical reports in PostgreSQL.
type TechnicalReportRepository struct {
	uow *platform.UnitOfWork
}

// NewTechnicalReportRepository constructs a TechnicalReportRepository over the shared unit of work.
func NewTechnicalReportRepository(uow *platform.UnitOfWork) (*TechnicalReportRepository, error) {
	if uow == nil {
		return nil, errors.New("technical report repository: unit of work is required")
	}
	return &TechnicalReportRepository{uow: uow}, nil
}

const reportColumns = "id, title, description, diagnosis, recommendations, created_by, created_at, updated_at"

// Create inserts the report.
func (r *TechnicalReportRepository) Create(ctx context.Context, report domain.TechnicalReport) (domain.TechnicalReport, error) {
	const stmt = `
		INSERT INTO technical_reports (id, title, description, diagnosis, recommendations, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.uow.Querier(ctx).Exec(ctx, stmt,
		report.ID,
		report.Title,
		report.Description,
		nullableString(report.Diagnosis),
		nullableString(report.Recommendations),
		nullableString(report.CreatedBy),
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return domain.TechnicalReport{}, &repositories.OrderError{
			Op:      "reports.create",
			Code:    repositories.OrderErrorUnknown,
			Message: "insert technical report",
			Err:     err,
		}
	}
	return report, nil
}

// Get fetches a report by id.
func (r *TechnicalReportRepository) Get(ctx context.Context, id string) (domain.TechnicalReport, error) {
	const stmt = `SELECT ` + reportColumns + ` FROM technical_reports WHERE id = $1`

	report, err := scanReport(r.uow.Querier(ctx).QueryRow(ctx, stmt, id))
	if err != nil {
		if platform.IsNoRows(err) {
			return domain.TechnicalReport{}, &repositories.OrderError{
				Op:      "reports.get",
				Code:    repositories.OrderErrorReportNotFound,
				Message: "technical report not found",
				Err:     err,
			}
		}
		return domain.TechnicalReport{}, &repositories.OrderError{
			Op:      "reports.get",
			Code:    repositories.OrderErrorUnknown,
			Message: "query technical report",
			Err:     err,
		}
	}
	return report, nil
}

func scanReport(row rowScanner) (domain.TechnicalReport, error) {
	var report domain.TechnicalReport
	var diagnosis, recommendations, createdBy *string
	err := row.Scan(
		&report.ID,
		&report.Title,
		&report.Description,
		&diagnosis,
		&recommendations,
		&createdBy,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return domain.TechnicalReport{}, err
	}
	if diagnosis != nil {
		report.Diagnosis = *diagnosis
	}
	if recommendations != nil {
		report.Recommendations = *recommendations
	}
	if createdBy != nil {
		report.CreatedBy = *createdBy
	}
	return report, nil
}
