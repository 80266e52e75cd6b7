package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoChatStore keeps chats and messages in MongoDB. Documents carry
// numeric ids allocated from a counters collection so they share the id
// space used by the HTTP API.
type MongoChatStore struct {
	client   *mongo.Client
	chats    *mongo.Collection
	chatMsgs *mongo.Collection
	direct   *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

type chatDoc struct {
	ID         uint      `bson:"_id"`
	BuyerID    uint      `bson:"buyer_id"`
	OwnerID    uint      `bson:"owner_id"`
	PropertyID uint      `bson:"property_id"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type chatMessageDoc struct {
	ID        uint      `bson:"_id"`
	ChatID    uint      `bson:"chat_id"`
	SenderID  uint      `bson:"sender_id"`
	Content   string    `bson:"content"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

type directMessageDoc struct {
	ID         uint      `bson:"_id"`
	SenderID   uint      `bson:"sender_id"`
	ReceiverID uint      `bson:"receiver_id"`
	Content    string    `bson:"content"`
	Read       bool      `bson:"read"`
	CreatedAt  time.Time `bson:"created_at"`
}

// ConnectMongo dials MongoDB, pings it and prepares the collections.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoChatStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := NewMongoChatStore(client, client.Database(database))
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func NewMongoChatStore(client *mongo.Client, db *mongo.Database) *MongoChatStore {
	return &MongoChatStore{
		client:   client,
		chats:    db.Collection("chats"),
		chatMsgs: db.Collection("chat_messages"),
		direct:   db.Collection("direct_messages"),
		counters: db.Collection("counters"),
		now:      time.Now,
	}
}

func (s *MongoChatStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "buyer_id", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "property_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create chats index: %w", err)
	}
	if _, err := s.chatMsgs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create chat_messages index: %w", err)
	}
	if _, err := s.direct.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create direct_messages index: %w", err)
	}
	return nil
}

func (s *MongoChatStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoChatStore) nextID(ctx context.Context, name string) (uint, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", name, err)
	}
	return uint(counter.Seq), nil
}

func (d chatDoc) model() models.Chat {
	c := models.Chat{BuyerID: d.BuyerID, OwnerID: d.OwnerID, PropertyID: d.PropertyID}
	c.ID, c.CreatedAt, c.UpdatedAt = d.ID, d.CreatedAt, d.UpdatedAt
	return c
}

func (s *MongoChatStore) GetOrCreateChat(ctx context.Context, buyerID, ownerID, propertyID uint) (*models.Chat, error) {
	filter := bson.M{"buyer_id": buyerID, "owner_id": ownerID, "property_id": propertyID}

	var doc chatDoc
	err := s.chats.FindOne(ctx, filter).Decode(&doc)
	if err == nil {
		c := doc.model()
		return &c, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	id, err := s.nextID(ctx, "chats")
	if err != nil {
		return nil, err
	}
	now := s.now()
	doc = chatDoc{ID: id, BuyerID: buyerID, OwnerID: ownerID, PropertyID: propertyID, CreatedAt: now, UpdatedAt: now}
	if _, err := s.chats.InsertOne(ctx, doc); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		if err := s.chats.FindOne(ctx, filter).Decode(&doc); err != nil {
			return nil, err
		}
	}
	c := doc.model()
	return &c, nil
}

func (s *MongoChatStore) GetChat(ctx context.Context, id uint) (*models.Chat, error) {
	var doc chatDoc
	if err := s.chats.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c := doc.model()
	return &c, nil
}

func (s *MongoChatStore) ListChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	cursor, err := s.chats.Find(ctx,
		bson.M{"$or": bson.A{bson.M{"buyer_id": userID}, bson.M{"owner_id": userID}}},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []chatDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	chats := make([]models.Chat, 0, len(docs))
	for _, d := range docs {
		chats = append(chats, d.model())
	}
	return chats, nil
}

func (s *MongoChatStore) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	id, err := s.nextID(ctx, "chat_messages")
	if err != nil {
		return err
	}
	msg.ID = id
	msg.CreatedAt = s.now()

	if _, err := s.chatMsgs.InsertOne(ctx, chatMessageDoc{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Read:      msg.Read,
		CreatedAt: msg.CreatedAt,
	}); err != nil {
		return err
	}
	_, err = s.chats.UpdateOne(ctx, bson.M{"_id": msg.ChatID}, bson.M{"$set": bson.M{"updated_at": msg.CreatedAt}})
	return err
}

func (s *MongoChatStore) ListChatMessages(ctx context.Context, chatID, readerID uint) ([]models.ChatMessage, error) {
	cursor, err := s.chatMsgs.Find(ctx,
		bson.M{"chat_id": chatID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []chatMessageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	if _, err := s.chatMsgs.UpdateMany(ctx,
		bson.M{"chat_id": chatID, "sender_id": bson.M{"$ne": readerID}, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	); err != nil {
		return nil, err
	}

	out := make([]models.ChatMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.ChatMessage(d))
	}
	return out, nil
}

func (s *MongoChatStore) SaveDirectMessage(ctx context.Context, msg *models.DirectMessage) error {
	id, err := s.nextID(ctx, "direct_messages")
	if err != nil {
		return err
	}
	msg.ID = id
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	_, err = s.direct.InsertOne(ctx, directMessageDoc(*msg))
	return err
}

func (s *MongoChatStore) findDirect(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.DirectMessage, error) {
	cursor, err := s.direct.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []directMessageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.DirectMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.DirectMessage(d))
	}
	return out, nil
}

func (s *MongoChatStore) Inbox(ctx context.Context, receiverID uint, page utils.Pagination) ([]models.DirectMessage, int64, error) {
	filter := bson.M{"receiver_id": receiverID}

	total, err := s.direct.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	messages, err := s.findDirect(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit)))
	if err != nil {
		return nil, 0, err
	}

	var unread []uint
	for _, m := range messages {
		if !m.Read {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		if _, err := s.direct.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": unread}},
			bson.M{"$set": bson.M{"read": true}},
		); err != nil {
			return nil, 0, err
		}
	}
	return messages, total, nil
}

func (s *MongoChatStore) Conversation(ctx context.Context, userA, userB uint, limit int) ([]models.DirectMessage, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	messages, err := s.findDirect(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *MongoChatStore) UnreadCount(ctx context.Context, receiverID uint) (int64, error) {
	return s.direct.CountDocuments(ctx, bson.M{"receiver_id": receiverID, "read": false})
}
