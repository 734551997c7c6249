package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/careline/careline/internal/platform/apperr"
)

const profilesNS = "careline.profiles"

func profileDoc(t *testing.T, p *Profile) bson.D {
	t.Helper()
	raw, err := bson.Marshal(p)
	if err != nil {
		t.Fatalf("marshal profile: %v", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	return doc
}

func TestRepoMongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create assigns id and version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewRepoMongo(mt.DB)

		p := &Profile{Email: "jane@example.com", Name: "Jane", ExternalID: "sub-1"}
		if err := repo.Create(context.Background(), p); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if p.ID == uuid.Nil || p.VersionID != 1 {
			t.Errorf("unexpected profile after create: %+v", p)
		}
	})

	mt.Run("create maps duplicate key to conflict", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))
		repo := NewRepoMongo(mt.DB)

		err := repo.Create(context.Background(), &Profile{Email: "jane@example.com"})
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	mt.Run("get by email decodes the document", func(mt *mtest.T) {
		want := &Profile{
			ID:             uuid.New(),
			Email:          "jane@example.com",
			Name:           "Jane",
			Role:           RolePatient,
			Status:         StatusActive,
			Allergies:      []string{"penicillin"},
			AppointmentIDs: []uuid.UUID{uuid.New()},
			VersionID:      4,
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, profilesNS, mtest.FirstBatch, profileDoc(t, want)))
		repo := NewRepoMongo(mt.DB)

		got, err := repo.GetByEmail(context.Background(), "JANE@example.com")
		if err != nil {
			t.Fatalf("GetByEmail() error: %v", err)
		}
		if got.ID != want.ID || got.VersionID != 4 || got.AppointmentIDs[0] != want.AppointmentIDs[0] {
			t.Errorf("decoded profile mismatch: %+v", got)
		}
	})

	mt.Run("get maps no documents to not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, profilesNS, mtest.FirstBatch))
		repo := NewRepoMongo(mt.DB)

		_, err := repo.GetByID(context.Background(), uuid.New())
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	mt.Run("update with stale version conflicts", func(mt *mtest.T) {
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}},
			mtest.CreateCursorResponse(0, profilesNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)
		repo := NewRepoMongo(mt.DB)

		err := repo.Update(context.Background(), &Profile{ID: uuid.New(), VersionID: 2})
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	mt.Run("update bumps version", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})
		repo := NewRepoMongo(mt.DB)

		p := &Profile{ID: uuid.New(), VersionID: 2}
		if err := repo.Update(context.Background(), p); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		if p.VersionID != 3 {
			t.Errorf("expected version 3, got %d", p.VersionID)
		}
	})

	mt.Run("append appointment on missing profile", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})
		repo := NewRepoMongo(mt.DB)

		err := repo.AppendAppointment(context.Background(), uuid.New(), uuid.New())
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	mt.Run("list doctors", func(mt *mtest.T) {
		a := &Profile{ID: uuid.New(), Name: "Dr. A", Role: RoleDoctor, Status: StatusActive, Specializations: []string{"cardiology"}}
		b := &Profile{ID: uuid.New(), Name: "Dr. B", Role: RoleDoctor, Status: StatusActive, Specializations: []string{"cardiology"}}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, profilesNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}),
			mtest.CreateCursorResponse(0, profilesNS, mtest.FirstBatch, profileDoc(t, a), profileDoc(t, b)),
		)
		repo := NewRepoMongo(mt.DB)

		items, total, err := repo.ListDoctors(context.Background(), "cardiology", 10, 0)
		if err != nil {
			t.Fatalf("ListDoctors() error: %v", err)
		}
		if total != 2 || len(items) != 2 || items[1].ID != b.ID {
			t.Errorf("unexpected listing: total=%d items=%d", total, len(items))
		}
	})
}
