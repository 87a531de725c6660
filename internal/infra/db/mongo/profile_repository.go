package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainprofile "bchat/internal/domain/profile"
)

type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection("profiles")}
}

func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "online", Value: 1}, {Key: "display_name", Value: 1}},
	})
	return err
}

func (r *ProfileRepository) ByID(ctx context.Context, id string) (*domainprofile.Profile, error) {
	var doc profileDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainprofile.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ProfileRepository) Save(ctx context.Context, p *domainprofile.Profile) error {
	doc := newProfileDocument(p)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *ProfileRepository) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"online":     online,
		"last_seen":  at.UTC().UnixMilli(),
		"updated_at": at.UTC().UnixMilli(),
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainprofile.ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) Online(ctx context.Context) ([]domainprofile.Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "display_name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"online": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []domainprofile.Profile
	for cur.Next(ctx) {
		var doc profileDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.toAggregate())
	}
	return out, cur.Err()
}

type profileDocument struct {
	ID          string `bson:"_id"`
	DisplayName string `bson:"display_name"`
	AvatarURL   string `bson:"avatar_url,omitempty"`
	Online      bool   `bson:"online"`
	LastSeen    int64  `bson:"last_seen"`
	CreatedAt   int64  `bson:"created_at"`
	UpdatedAt   int64  `bson:"updated_at"`
}

func newProfileDocument(p *domainprofile.Profile) profileDocument {
	return profileDocument{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Online:      p.Online,
		LastSeen:    p.LastSeen.UnixMilli(),
		CreatedAt:   p.CreatedAt.UnixMilli(),
		UpdatedAt:   p.UpdatedAt.UnixMilli(),
	}
}

func (d profileDocument) toAggregate() *domainprofile.Profile {
	return &domainprofile.Profile{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		AvatarURL:   d.AvatarURL,
		Online:      d.Online,
		LastSeen:    timestampToTime(d.LastSeen),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
}
