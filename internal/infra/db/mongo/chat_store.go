package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "bchat/internal/domain/chat"
)

// ChatStore keeps conversations, memberships and the message log. The
// direct_key unique index is what makes GetOrCreateDirect race-free
// across processes.
type ChatStore struct {
	db            *mongo.Database
	conversations *mongo.Collection
	memberships   *mongo.Collection
	messages      *mongo.Collection
	counters      *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{
		db:            db,
		conversations: db.Collection("conversations"),
		memberships:   db.Collection("conversation_members"),
		messages:      db.Collection("messages"),
		counters:      db.Collection("counters"),
	}
}

var _ domainchat.Store = (*ChatStore)(nil)

func (s *ChatStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "direct_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	}); err != nil {
		return err
	}
	if _, err := s.memberships.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "profile_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "profile_id", Value: 1}},
		},
	}); err != nil {
		return err
	}
	_, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}},
	})
	return err
}

func (s *ChatStore) GetOrCreateDirect(ctx context.Context, selfID, otherID string, now time.Time) (*domainchat.Conversation, bool, error) {
	candidate, err := domainchat.NewDirect(domainchat.DirectParams{
		ID:        uuid.NewString(),
		CreatedBy: selfID,
		OtherID:   otherID,
		Now:       now,
	})
	if err != nil {
		return nil, false, err
	}
	doc := newConversationDocument(candidate)

	// The upsert and both membership inserts commit together, so a crash
	// mid-create can never leave a member-less conversation behind. The
	// unique direct_key index still picks the single winner when both
	// sides create concurrently.
	session, err := s.db.Client().StartSession()
	if err != nil {
		return nil, false, err
	}
	defer session.EndSession(ctx)

	type directResult struct {
		conv    *domainchat.Conversation
		created bool
	}
	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		filter := bson.M{"direct_key": doc.DirectKey}
		update := bson.M{"$setOnInsert": doc}
		opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
		var got conversationDocument
		if err := s.conversations.FindOneAndUpdate(sc, filter, update, opts).Decode(&got); err != nil {
			return nil, err
		}
		created := got.ID == doc.ID
		if created {
			joined := timestampToTime(got.CreatedAt)
			memberDocs := make([]any, 0, 2)
			for _, memberID := range []string{candidate.CreatedBy, otherID} {
				memberDocs = append(memberDocs, membershipDocument{
					ID:             got.ID + ":" + memberID,
					ConversationID: got.ID,
					ProfileID:      memberID,
					JoinedAt:       joined.UnixMilli(),
				})
			}
			if _, err := s.memberships.InsertMany(sc, memberDocs); err != nil {
				return nil, err
			}
		}
		return directResult{conv: got.toAggregate(), created: created}, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := res.(directResult)
	return out.conv, out.created, nil
}

func (s *ChatStore) CreateGroup(ctx context.Context, conv *domainchat.Conversation, memberIDs []string) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.conversations.InsertOne(sc, newConversationDocument(conv)); err != nil {
			return nil, err
		}
		docs := make([]any, 0, len(memberIDs))
		for _, memberID := range memberIDs {
			docs = append(docs, membershipDocument{
				ID:             conv.ID + ":" + memberID,
				ConversationID: conv.ID,
				ProfileID:      memberID,
				JoinedAt:       conv.CreatedAt.UnixMilli(),
			})
		}
		if _, err := s.memberships.InsertMany(sc, docs); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (s *ChatStore) ConversationByID(ctx context.Context, id string) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (s *ChatStore) ConversationsFor(ctx context.Context, profileID string) ([]domainchat.Conversation, error) {
	cur, err := s.memberships.Find(ctx, bson.M{"profile_id": profileID})
	if err != nil {
		return nil, err
	}
	var ids []string
	for cur.Next(ctx) {
		var doc membershipDocument
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, err
		}
		ids = append(ids, doc.ConversationID)
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	cur.Close(ctx)
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	convCur, err := s.conversations.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer convCur.Close(ctx)
	var out []domainchat.Conversation
	for convCur.Next(ctx) {
		var doc conversationDocument
		if err := convCur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.toAggregate())
	}
	return out, convCur.Err()
}

func (s *ChatStore) Members(ctx context.Context, conversationID string) ([]domainchat.Membership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "profile_id", Value: 1}})
	cur, err := s.memberships.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []domainchat.Membership
	for cur.Next(ctx) {
		var doc membershipDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domainchat.Membership{
			ConversationID: doc.ConversationID,
			ProfileID:      doc.ProfileID,
			JoinedAt:       timestampToTime(doc.JoinedAt),
		})
	}
	return out, cur.Err()
}

func (s *ChatStore) AppendMessage(ctx context.Context, msg *domainchat.Message) error {
	if msg.ConversationID != "" {
		update := bson.M{"$set": bson.M{"updated_at": msg.CreatedAt.UnixMilli()}}
		res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": msg.ConversationID}, update)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return domainchat.ErrConversationNotFound
		}
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	msg.Seq = seq
	_, err = s.messages.InsertOne(ctx, newMessageDocument(msg))
	return err
}

func (s *ChatStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domainchat.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var newestFirst []domainchat.Message
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, *doc.toAggregate())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	out := make([]domainchat.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}

func (s *ChatStore) LastMessage(ctx context.Context, conversationID string) (*domainchat.Message, error) {
	msgs, err := s.RecentMessages(ctx, conversationID, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (s *ChatStore) nextSeq(ctx context.Context) (uint64, error) {
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": "messages"}, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return uint64(doc.Seq), nil
}

type conversationDocument struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name,omitempty"`
	IsGroup   bool   `bson:"is_group"`
	CreatedBy string `bson:"created_by"`
	DirectKey string `bson:"direct_key,omitempty"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
}

func newConversationDocument(conv *domainchat.Conversation) conversationDocument {
	return conversationDocument{
		ID:        conv.ID,
		Name:      conv.Name,
		IsGroup:   conv.IsGroup,
		CreatedBy: conv.CreatedBy,
		DirectKey: conv.DirectKey,
		CreatedAt: conv.CreatedAt.UnixMilli(),
		UpdatedAt: conv.UpdatedAt.UnixMilli(),
	}
}

func (d conversationDocument) toAggregate() *domainchat.Conversation {
	return &domainchat.Conversation{
		ID:        d.ID,
		Name:      d.Name,
		IsGroup:   d.IsGroup,
		CreatedBy: d.CreatedBy,
		DirectKey: d.DirectKey,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

type membershipDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	ProfileID      string `bson:"profile_id"`
	JoinedAt       int64  `bson:"joined_at"`
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       string `bson:"sender_id"`
	Content        string `bson:"content,omitempty"`
	ImageURL       string `bson:"image_url,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
	Seq            int64  `bson:"seq"`
}

func newMessageDocument(msg *domainchat.Message) messageDocument {
	return messageDocument{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		ImageURL:       msg.ImageURL,
		CreatedAt:      msg.CreatedAt.UnixMilli(),
		Seq:            int64(msg.Seq),
	}
}

func (d messageDocument) toAggregate() *domainchat.Message {
	return &domainchat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		ImageURL:       d.ImageURL,
		CreatedAt:      timestampToTime(d.CreatedAt),
		Seq:            uint64(d.Seq),
	}
}
