package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainidentity "bchat/internal/domain/identity"
)

type IdentityRepository struct {
	col *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{col: db.Collection("identities")}
}

func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *IdentityRepository) ByID(ctx context.Context, id string) (*domainidentity.Identity, error) {
	var doc identityDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainidentity.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *IdentityRepository) ByEmail(ctx context.Context, email string) (*domainidentity.Identity, error) {
	var doc identityDocument
	filter := bson.M{"email": domainidentity.NormalizeEmail(email)}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainidentity.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *IdentityRepository) Save(ctx context.Context, ident *domainidentity.Identity) error {
	doc := newIdentityDocument(ident)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainidentity.ErrEmailAlreadyUsed
		}
		return err
	}
	return nil
}

type identityDocument struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	CreatedAt    int64  `bson:"created_at"`
}

func newIdentityDocument(ident *domainidentity.Identity) identityDocument {
	return identityDocument{
		ID:           ident.ID,
		Email:        ident.Email,
		PasswordHash: ident.PasswordHash,
		CreatedAt:    ident.CreatedAt.UnixMilli(),
	}
}

func (d identityDocument) toAggregate() *domainidentity.Identity {
	return &domainidentity.Identity{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    timestampToTime(d.CreatedAt),
	}
}
