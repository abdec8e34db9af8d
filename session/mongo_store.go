package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

const scopedStateCollection = "scoped_state"

// MongoStore is a MongoDB-based implementation of Store. Sessions are
// documents keyed by id; scoped state lives in a companion collection with
// one document per user and per app.
type MongoStore struct {
	client   *mongo.Client
	sessions *mongo.Collection
	scoped   *mongo.Collection
	logger   *zap.Logger
}

type mongoSessionDoc struct {
	ID        string         `bson:"_id"`
	AppName   string         `bson:"app_name"`
	UserID    string         `bson:"user_id"`
	State     map[string]any `bson:"state"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type mongoScopedDoc struct {
	ID    string         `bson:"_id"` // "user:<id>" or "app:<name>"
	State map[string]any `bson:"state"`
}

// NewMongoStore connects to MongoDB and returns a session store.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "sessions"
	}
	db := client.Database(cfg.Database)

	return &MongoStore{
		client:   client,
		sessions: db.Collection(collection),
		scoped:   db.Collection(scopedStateCollection),
		logger:   logger.With(zap.String("component", "mongo_session_store")),
	}, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks if the store is healthy.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Create allocates a new session and persists it.
func (s *MongoStore) Create(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error) {
	if appName == "" || userID == "" {
		return nil, ErrInvalidInput
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		AppName:   appName,
		UserID:    userID,
		State:     make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range initialState {
		sess.State[k] = v
	}

	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.Get(ctx, sess.ID)
}

// Save upserts the session document, last-write-wins.
func (s *MongoStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrInvalidInput
	}

	local, userScoped, appScoped := splitPersistent(sess.State)

	doc := mongoSessionDoc{
		ID:        sess.ID,
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		State:     local,
		CreatedAt: sess.CreatedAt.UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.sessions.ReplaceOne(ctx,
		bson.M{"_id": sess.ID}, doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := s.saveScoped(ctx, "user:"+sess.UserID, userScoped); err != nil {
		return err
	}
	return s.saveScoped(ctx, "app:"+sess.AppName, appScoped)
}

func (s *MongoStore) saveScoped(ctx context.Context, docID string, state map[string]any) error {
	if len(state) == 0 {
		return nil
	}
	set := bson.M{}
	for k, v := range state {
		set["state."+k] = v
	}
	_, err := s.scoped.UpdateOne(ctx,
		bson.M{"_id": docID},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save scoped state: %w", err)
	}
	return nil
}

// Get retrieves a session by id with scoped state merged in.
func (s *MongoStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var doc mongoSessionDoc
	err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess := s.fromDoc(doc)
	if err := s.mergeScoped(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session document. Deleting an absent session is a
// no-op; scoped state survives.
func (s *MongoStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListByUser retrieves all sessions owned by userID, oldest first.
func (s *MongoStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	cur, err := s.sessions.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var docs []mongoSessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	result := make([]*Session, 0, len(docs))
	for _, doc := range docs {
		sess := s.fromDoc(doc)
		if err := s.mergeScoped(ctx, sess); err != nil {
			return nil, err
		}
		result = append(result, sess)
	}
	return result, nil
}

func (s *MongoStore) fromDoc(doc mongoSessionDoc) *Session {
	if doc.State == nil {
		doc.State = make(map[string]any)
	}
	return &Session{
		ID:        doc.ID,
		AppName:   doc.AppName,
		UserID:    doc.UserID,
		State:     doc.State,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func (s *MongoStore) mergeScoped(ctx context.Context, sess *Session) error {
	for _, docID := range []string{"user:" + sess.UserID, "app:" + sess.AppName} {
		var doc mongoScopedDoc
		err := s.scoped.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read scoped state: %w", err)
		}
		mergeState(sess, doc.State)
	}
	return nil
}

// Ensure MongoStore implements Store
var _ Store = (*MongoStore)(nil)
