package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/docstore"
)

type prescriptionRepoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &prescriptionRepoMongo{coll: database.Collection(docstore.CollPrescriptions)}
}

func (r *prescriptionRepoMongo) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("prescription")
	}
	if err != nil {
		return nil, fmt.Errorf("find prescription: %w", err)
	}
	return &p, nil
}

func (r *prescriptionRepoMongo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Prescription, error) {
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	items := []*Prescription{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode prescriptions: %w", err)
	}
	return items, nil
}

func (r *prescriptionRepoMongo) SetSummary(ctx context.Context, p *Prescription) error {
	now := time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{
		"$set": bson.M{"summary": p.Summary, "status": p.Status, "updatedAt": now},
	})
	if err != nil {
		return fmt.Errorf("update prescription: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("prescription")
	}
	p.UpdatedAt = now
	return nil
}

func (r *prescriptionRepoMongo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("prescription")
	}
	return nil
}
