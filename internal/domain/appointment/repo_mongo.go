package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careline/careline/internal/domain/patient"
	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/docstore"
)

var listSort = bson.D{{Key: "appointmentDate", Value: 1}, {Key: "createdAt", Value: -1}}

type appointmentRepoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &appointmentRepoMongo{coll: database.Collection(docstore.CollAppointments)}
}

func (r *appointmentRepoMongo) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.VersionID = 1
	a.normalizeLists()

	if _, err := r.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &a, nil
}

func (r *appointmentRepoMongo) Update(ctx context.Context, a *Appointment) error {
	now := time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": a.ID, "versionId": a.VersionID},
		bson.M{
			"$set": bson.M{
				"status":             a.Status,
				"appointmentDate":    a.AppointmentDate,
				"appointmentTime":    a.AppointmentTime,
				"cancellationReason": a.CancellationReason,
				"notes":              a.Notes,
				"updatedAt":          now,
			},
			"$inc": bson.M{"versionId": 1},
		})
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": a.ID})
		if err != nil {
			return fmt.Errorf("check appointment: %w", err)
		}
		if n == 0 {
			return apperr.NotFound("appointment")
		}
		return apperr.Conflict("appointment %s was modified concurrently", a.ID)
	}
	a.VersionID++
	a.UpdatedAt = now
	return nil
}

func (r *appointmentRepoMongo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *appointmentRepoMongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Appointment, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	items := []*Appointment{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return items, nil
}

func (r *appointmentRepoMongo) ListByEmail(ctx context.Context, email string) ([]*Appointment, error) {
	return r.find(ctx, bson.M{"patientEmail": patient.NormalizeEmail(email)}, options.Find().SetSort(listSort))
}

func (r *appointmentRepoMongo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return r.find(ctx, bson.M{"patientId": patientID}, options.Find().SetSort(listSort))
}

func (r *appointmentRepoMongo) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	filter := bson.M{}
	if params.Status != "" {
		filter["status"] = params.Status
	}
	if params.Date != nil {
		filter["appointmentDate"] = *params.Date
	}
	if params.DoctorID != nil {
		filter["doctorId"] = *params.DoctorID
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	items, err := r.find(ctx, filter, options.Find().
		SetSort(listSort).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}
