package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citykit/dmur-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	st := NewPostgresWithPool(mock, mock.Close)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		st.Close()
	})
	return st, mock
}

func pgRunRow(run *model.AnalysisRun) *pgxmock.Rows {
	var result []byte
	if run.Result != nil {
		result, _ = json.Marshal(run.Result)
	}
	return pgxmock.NewRows([]string{
		"id", "city", "status", "boundary_geojson", "result",
		"total_businesses", "core_businesses", "area_km2", "created_at",
	}).AddRow(run.ID, run.City, string(run.Status), run.BoundaryGeoJSON, result,
		run.TotalBusinesses, run.CoreBusinesses, run.AreaKm2, run.CreatedAt)
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, st.Migrate(context.Background()))
}

func TestPostgres_SaveRun(t *testing.T) {
	st, mock := newMockStore(t)
	run := sampleRun("run-1", "Testville", time.Now().UTC())

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID, run.City, string(run.Status),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			run.TotalBusinesses, run.CoreBusinesses, run.AreaKm2, run.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SaveRun(context.Background(), run))
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newMockStore(t)
	run := sampleRun("run-1", "Testville", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	mock.ExpectQuery("FROM runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(pgRunRow(run))

	got, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Testville", got.City)
	require.NotNil(t, got.Result)
	assert.InDelta(t, run.Result.Composite, got.Result.Composite, 1e-9)
}

func TestPostgres_GetRunNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("FROM runs WHERE id").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPostgres_ListRuns(t *testing.T) {
	st, mock := newMockStore(t)
	a := sampleRun("r1", "Alpha", time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC))
	b := sampleRun("r2", "Beta", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	rows := pgRunRow(a)
	var result []byte
	if b.Result != nil {
		result, _ = json.Marshal(b.Result)
	}
	rows.AddRow(b.ID, b.City, string(b.Status), b.BoundaryGeoJSON, result,
		b.TotalBusinesses, b.CoreBusinesses, b.AreaKm2, b.CreatedAt)

	mock.ExpectQuery("FROM runs WHERE 1=1 AND city").
		WithArgs("Alpha").
		WillReturnRows(rows)

	runs, err := st.ListRuns(context.Background(), RunFilter{City: "Alpha"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestPostgres_DeleteRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM runs").
		WithArgs("r1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, st.DeleteRun(context.Background(), "r1"))

	mock.ExpectExec("DELETE FROM runs").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err := st.DeleteRun(context.Background(), "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
