package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

const (
	collectionIdentities = "identities"
	identitySequence     = "identity_id"
)

type IdentityRepository struct {
	col      *mongo.Collection
	counters *Counters
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{
		col:      db.Collection(collectionIdentities),
		counters: NewCounters(db),
	}
}

type identityDocument struct {
	ID             int64      `bson:"_id"`
	Email          string     `bson:"email"`
	FirstName      string     `bson:"first_name,omitempty"`
	LastName       string     `bson:"last_name,omitempty"`
	PasswordHash   string     `bson:"password_hash"`
	Roles          []string   `bson:"roles"`
	Token          string     `bson:"token,omitempty"`
	TokenExpiresAt *time.Time `bson:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toDocument(i *domain.Identity) identityDocument {
	return identityDocument{
		ID:             i.ID,
		Email:          i.Email,
		FirstName:      i.FirstName,
		LastName:       i.LastName,
		PasswordHash:   i.PasswordHash,
		Roles:          i.StoredRoles,
		Token:          i.Token,
		TokenExpiresAt: i.TokenExpiresAt,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func (d identityDocument) toDomain() *domain.Identity {
	i := &domain.Identity{
		ID:           d.ID,
		Email:        d.Email,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		PasswordHash: d.PasswordHash,
		StoredRoles:  d.Roles,
		Token:        d.Token,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.TokenExpiresAt != nil {
		exp := d.TokenExpiresAt.UTC()
		i.TokenExpiresAt = &exp
	}
	return i
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc identityDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, id int64) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *IdentityRepository) FindByToken(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return r.findOne(ctx, bson.M{"token": token})
}

// Create allocates the next identity ID from the counters collection and
// inserts the document. The unique email index turns a concurrent duplicate
// registration into domain.ErrDuplicateIdentity.
func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.counters.Next(ctx, identitySequence)
	if err != nil {
		return err
	}
	identity.ID = id

	if _, err := r.col.InsertOne(ctx, toDocument(identity)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// profileUpdate sets every field except the token pair, which only
// UpdateToken and DeleteExpiredTokens write.
func profileUpdate(i *domain.Identity) bson.M {
	roles := i.StoredRoles
	if roles == nil {
		roles = []string{}
	}
	return bson.M{"$set": bson.M{
		"email":         i.Email,
		"first_name":    i.FirstName,
		"last_name":     i.LastName,
		"password_hash": i.PasswordHash,
		"roles":         roles,
		"updated_at":    i.UpdatedAt.UTC(),
	}}
}

func (r *IdentityRepository) Save(ctx context.Context, identity *domain.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": identity.ID}, profileUpdate(identity))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("save identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (r *IdentityRepository) UpdateToken(ctx context.Context, id int64, token string, expiresAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	var update bson.M
	if token == "" || expiresAt == nil {
		update = bson.M{
			"$unset": bson.M{"token": "", "token_expires_at": ""},
			"$set":   bson.M{"updated_at": now},
		}
	} else {
		update = bson.M{"$set": bson.M{
			"token":            token,
			"token_expires_at": expiresAt.UTC(),
			"updated_at":       now,
		}}
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// expiredFilter matches tokens whose expiry is at or before now, the same
// instants Identity.TokenValidAt rejects.
func expiredFilter(now time.Time) bson.M {
	return bson.M{"token_expires_at": bson.M{"$lte": now.UTC()}}
}

func (r *IdentityRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx,
		expiredFilter(now),
		bson.M{
			"$unset": bson.M{"token": "", "token_expires_at": ""},
			"$set":   bson.M{"updated_at": now.UTC()},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.ModifiedCount, nil
}

// EnsureIndexes creates the unique email index, the sparse unique token
// index and the expiry index used by the purge.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "token", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"token": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "token_expires_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
