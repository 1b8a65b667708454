package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewPGRepo(db)
	now := time.Now().UTC()
	run := &AnalysisRun{
		DocumentID: "doc-1",
		Framework:  "IFRS",
		Standards:  []string{"IAS_1", "IAS_40"},
		Mode:       "smart",
		Status:     StatusCompleted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mock.ExpectExec("INSERT INTO analysis_runs").
		WithArgs(
			run.DocumentID,
			run.Framework,
			sqlmock.AnyArg(), // standards json
			run.Mode,
			run.Status,
			sqlmock.AnyArg(), // record json
			run.CreatedAt,
			run.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetDecodesRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stored := &AnalysisRun{
		DocumentID: "doc-1",
		Framework:  "IFRS",
		Standards:  []string{"IAS_40"},
		Mode:       "zap",
		Status:     StatusCompletedWithErrors,
	}
	record, err := json.Marshal(stored)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	mock.ExpectQuery("SELECT record FROM analysis_runs").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(record))

	repo := NewPGRepo(db)
	got, err := repo.Get(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusCompletedWithErrors || got.Mode != "zap" {
		t.Fatalf("decoded run: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT record FROM analysis_runs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"record"}))

	repo := NewPGRepo(db)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
