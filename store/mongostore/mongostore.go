// Package mongostore implements authcore.IdentityStore on a MongoDB collection with the
// official mongo-driver. Identities are documents keyed by ObjectID with a unique index on the
// normalized email.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/permission"
	"github.com/mentorloop/authcore/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	fieldEmail            = "email"
	fieldPasswordHash     = "password_hash"
	fieldTwoFactorSecret  = "two_factor_secret"
	fieldTwoFactorEnabled = "two_factor_enabled"
	fieldUpdatedAt        = "updated_at"
)

type identityDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Email            string             `bson:"email"`
	Name             string             `bson:"name"`
	PasswordHash     string             `bson:"password_hash,omitempty"`
	Role             string             `bson:"role"`
	TwoFactorSecret  string             `bson:"two_factor_secret,omitempty"`
	TwoFactorEnabled bool               `bson:"two_factor_enabled"`
	CreatedAt        time.Time          `bson:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at"`
}

func (d identityDocument) record() authcore.IdentityRecord {
	// Unknown roles decode to the zero role, which the engine refuses to issue tokens for.
	role, _ := permission.ParseRole(d.Role)
	return authcore.IdentityRecord{
		ID:               d.ID.Hex(),
		Email:            d.Email,
		Name:             d.Name,
		PasswordHash:     d.PasswordHash,
		Role:             role,
		TwoFactorSecret:  d.TwoFactorSecret,
		TwoFactorEnabled: d.TwoFactorEnabled,
	}
}

// Store is a MongoDB-backed identity store.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

// New wraps an existing collection.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

// Connect dials uri, pings the primary and returns a Store on database.collection together
// with a function that disconnects the client.
func Connect(ctx context.Context, uri, database, collection string) (*Store, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return New(client.Database(database).Collection(collection)), client.Disconnect, nil
}

// EnsureIndexes creates the unique email index. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldEmail, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

// Create inserts a new identity and returns it with its generated ID.
func (s *Store) Create(ctx context.Context, in store.NewIdentity) (authcore.IdentityRecord, error) {
	doc, err := newDocument(in, s.now())
	if err != nil {
		return authcore.IdentityRecord{}, err
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return authcore.IdentityRecord{}, store.ErrEmailTaken
		}
		return authcore.IdentityRecord{}, fmt.Errorf("insert identity: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.record(), nil
}

func newDocument(in store.NewIdentity, now time.Time) (identityDocument, error) {
	email := store.NormalizeEmail(in.Email)
	if email == "" || !in.Role.Valid() {
		return identityDocument{}, authcore.ErrMalformedInput
	}
	return identityDocument{
		ID:           primitive.NewObjectID(),
		Email:        email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role.String(),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (authcore.IdentityRecord, error) {
	return s.findOne(ctx, bson.M{fieldEmail: store.NormalizeEmail(email)})
}

func (s *Store) FindByID(ctx context.Context, id string) (authcore.IdentityRecord, error) {
	filter, err := idFilter(id)
	if err != nil {
		return authcore.IdentityRecord{}, err
	}
	return s.findOne(ctx, filter)
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (authcore.IdentityRecord, error) {
	var doc identityDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return authcore.IdentityRecord{}, authcore.ErrIdentityNotFound
		}
		return authcore.IdentityRecord{}, fmt.Errorf("find identity: %w", err)
	}
	return doc.record(), nil
}

// EnableSecondFactor writes the secret and the enabled flag in one update.
func (s *Store) EnableSecondFactor(ctx context.Context, id, secret string) error {
	if secret == "" {
		return authcore.ErrMalformedInput
	}
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{
			fieldTwoFactorSecret:  secret,
			fieldTwoFactorEnabled: true,
			fieldUpdatedAt:        s.now().UTC(),
		},
	})
}

func (s *Store) DisableSecondFactor(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set":   bson.M{fieldTwoFactorEnabled: false, fieldUpdatedAt: s.now().UTC()},
		"$unset": bson.M{fieldTwoFactorSecret: ""},
	})
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateOne(ctx, id, bson.M{
		"$set": bson.M{fieldPasswordHash: hash, fieldUpdatedAt: s.now().UTC()},
	})
}

func (s *Store) updateOne(ctx context.Context, id string, update bson.M) error {
	filter, err := idFilter(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return authcore.ErrIdentityNotFound
	}
	return nil
}

// idFilter treats IDs that are not ObjectIDs as unknown identities.
func idFilter(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, authcore.ErrIdentityNotFound
	}
	return bson.M{"_id": oid}, nil
}

var (
	_ authcore.IdentityStore    = (*Store)(nil)
	_ authcore.PasswordRehasher = (*Store)(nil)
)
