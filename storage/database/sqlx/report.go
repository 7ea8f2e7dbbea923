package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
)

type reportRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Kind      string    `db:"kind"`
	Filename  string    `db:"filename"`
	Content   []byte    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

type reportStore struct {
	db sqlx.ExtContext
}

var _ importer.ReportStore = (*reportStore)(nil) // interface compliance check

func NewReportStore(db sqlx.ExtContext) *reportStore {
	return &reportStore{db: db}
}

// SaveReport stores rep and purges the expired reports.
func (store reportStore) SaveReport(ctx context.Context, rep importer.Report) (importer.Report, error) {
	if _, err := store.db.ExecContext(ctx, `DELETE FROM import_report WHERE expires_at <= $1`, rep.CreatedAt.UTC()); err != nil {
		return importer.Report{}, trapErr(err, "purging reports")
	}

	rep.ID = uuid.New().String()
	q := `INSERT INTO import_report (id, school_id, kind, filename, content, created_at, expires_at)
		VALUES (:id, :school_id, :kind, :filename, :content, :created_at, :expires_at)`
	row := reportRow{
		ID:        rep.ID,
		SchoolID:  rep.SchoolID,
		Kind:      rep.Kind,
		Filename:  rep.Filename,
		Content:   rep.Content,
		CreatedAt: rep.CreatedAt.UTC(),
		ExpiresAt: rep.ExpiresAt.UTC(),
	}
	if _, err := sqlx.NamedExecContext(ctx, store.db, q, row); err != nil {
		return importer.Report{}, trapErr(err, "inserting report")
	}
	return rep, nil
}

func (store reportStore) GetReport(ctx context.Context, schoolID, id string) (importer.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return importer.Report{}, school.ErrNotFound
	}
	if _, err := uuid.Parse(schoolID); err != nil {
		return importer.Report{}, school.ErrNotFound
	}

	var r reportRow
	q := `SELECT id, school_id, kind, filename, content, created_at, expires_at
		FROM import_report WHERE id = $1 AND school_id = $2 AND expires_at > $3`
	if err := sqlx.GetContext(ctx, store.db, &r, q, id, schoolID, school.NowFunc()); err != nil {
		return importer.Report{}, trapErr(err, "selecting report")
	}
	return importer.Report{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Kind:      r.Kind,
		Filename:  r.Filename,
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}, nil
}
