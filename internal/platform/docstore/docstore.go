// Package docstore wraps the MongoDB client used when STORE_DRIVER=mongo.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	CollProfiles      = "profiles"
	CollAppointments  = "appointments"
	CollPrescriptions = "prescriptions"
)

// Store owns the client and the application database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db}
}

func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// WithinTx runs fn inside a session transaction. Operations issued with the
// context handed to fn join the transaction. Requires a replica set.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// IndexModels lists the indexes each collection needs. Unique indexes back the
// email and external id invariants; the compound ones serve the listing sort.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CollProfiles: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
			{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_external_id")},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("role_status")},
		},
		CollAppointments: {
			{Keys: bson.D{{Key: "patientEmail", Value: 1}, {Key: "appointmentDate", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("email_date_created")},
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "appointmentDate", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("patient_date_created")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "appointmentDate", Value: 1}}, Options: options.Index().SetName("status_date")},
		},
		CollPrescriptions: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) (int, error) {
	created := 0
	for _, coll := range []string{CollProfiles, CollAppointments, CollPrescriptions} {
		names, err := db.Collection(coll).Indexes().CreateMany(ctx, IndexModels()[coll])
		if err != nil {
			return created, fmt.Errorf("create indexes on %s: %w", coll, err)
		}
		created += len(names)
	}
	return created, nil
}
