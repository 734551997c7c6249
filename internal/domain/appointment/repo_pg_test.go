package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/db"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewRepoPG(mock)
}

func TestRepoPG_Create(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &Appointment{PatientEmail: "a@b.com", Status: StatusPending}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if a.ID == uuid.Nil || a.VersionID != 1 || a.Allergies == nil {
		t.Errorf("expected id, version and normalized lists, got %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepoPG_GetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery("FROM appointments WHERE id").WithArgs(id).WillReturnRows(mock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepoPG_Update(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE appointments SET").
		WithArgs(id, 1, StatusConfirmed, pgxmock.AnyArg(), "10:00 AM", "", "").
		WillReturnRows(mock.NewRows([]string{"version_id", "updated_at"}).AddRow(2, now))

	a := &Appointment{ID: id, VersionID: 1, Status: StatusConfirmed, AppointmentTime: "10:00 AM"}
	if err := repo.Update(context.Background(), a); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if a.VersionID != 2 || !a.UpdatedAt.Equal(now) {
		t.Errorf("expected version and timestamp from RETURNING, got %d %s", a.VersionID, a.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepoPG_UpdateStaleVersion(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery("UPDATE appointments SET").WillReturnRows(mock.NewRows([]string{"version_id", "updated_at"}))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(id).WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Update(context.Background(), &Appointment{ID: id, VersionID: 4})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRepoPG_DeleteMissing(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectExec("DELETE FROM appointments").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepoPG_ListByEmailOrdering(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("WHERE patient_email = \\$1 ORDER BY appointment_date ASC, created_at DESC").
		WithArgs("a@b.com").
		WillReturnRows(mock.NewRows([]string{"id"}))

	items, err := repo.ListByEmail(context.Background(), "A@B.com")
	if err != nil {
		t.Fatalf("ListByEmail() error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected an empty, non-nil list, got %v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepoPG_SearchBuildsFilters(t *testing.T) {
	mock, repo := newMockRepo(t)
	date := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM appointments WHERE 1=1 AND status = \\$1 AND appointment_date = \\$2").
		WithArgs(StatusPending, date).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("LIMIT \\$3 OFFSET \\$4").
		WithArgs(StatusPending, date, 10, 20).
		WillReturnRows(mock.NewRows([]string{"id"}))

	items, total, err := repo.Search(context.Background(), SearchParams{Status: StatusPending, Date: &date}, 10, 20)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("expected empty page, got %d/%d", len(items), total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepoPG_CreateRollsBackWithTransaction(t *testing.T) {
	mock, repo := newMockRepo(t)
	boom := errors.New("link failed")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	err := db.NewTxRunner(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, &Appointment{}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
