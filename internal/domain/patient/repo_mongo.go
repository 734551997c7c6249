package patient

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

type profileRepoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &profileRepoMongo{coll: database.Collection(docstore.CollProfiles)}
}

func (r *profileRepoMongo) findOne(ctx context.Context, filter bson.M) (*Profile, error) {
	var p Profile
	err := r.coll.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("profile")
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

func (r *profileRepoMongo) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.VersionID = 1
	p.normalizeLists()

	_, err := r.coll.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("a profile with this email or external id already exists")
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *profileRepoMongo) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *profileRepoMongo) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *profileRepoMongo) GetByExternalID(ctx context.Context, externalID string) (*Profile, error) {
	return r.findOne(ctx, bson.M{"externalId": externalID})
}

func (r *profileRepoMongo) Update(ctx context.Context, p *Profile) error {
	p.normalizeLists()
	expected := p.VersionID

	next := *p
	next.VersionID = expected + 1
	next.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID, "versionId": expected}, &next)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("email %s is already registered", p.Email)
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, p.ID)
	}
	p.VersionID = next.VersionID
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *profileRepoMongo) missOrConflict(ctx context.Context, id uuid.UUID) error {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("check profile: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("profile")
	}
	return apperr.Conflict("profile %s was modified concurrently", id)
}

func (r *profileRepoMongo) AppendAppointment(ctx context.Context, profileID, appointmentID uuid.UUID) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": profileID}, bson.M{
		"$addToSet": bson.M{"appointmentIds": appointmentID},
		"$inc":      bson.M{"versionId": 1},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("link appointment: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("profile")
	}
	return nil
}

func (r *profileRepoMongo) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Profile, int, error) {
	filter := bson.M{"role": RoleDoctor, "status": StatusActive}
	if specialization != "" {
		filter["specializations"] = specialization
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	items := []*Profile{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode doctors: %w", err)
	}
	return items, int(total), nil
}
