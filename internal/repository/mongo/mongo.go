// Package mongo implements the repository interfaces on a MongoDB document
// store.
//
// Each UserRecord is one document whose _id is the username. Merge-writes
// map directly onto the document model: UpdateOne with $set touches only the
// listed fields and upsert creates the document when it is missing. The
// check-in increment is a single FindOneAndUpdate with $inc, which MongoDB
// applies atomically to the document.
package mongo

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/model"
	"github.com/sakif/gitpoints/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// DefaultCollection holds the user documents unless Options says otherwise.
const DefaultCollection = "users"

// Options configures the connection.
type Options struct {
	URI        string
	Database   string
	Collection string
	// ClientCertificate enables MONGODB-X509 authentication when set.
	ClientCertificate *tls.Certificate
	ConnectTimeout    time.Duration
}

// Store is a MongoDB backed repository.Store.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	logger *slog.Logger
}

// New connects, verifies the connection with a ping and ensures indexes.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.URI == "" {
		return nil, errors.New("mongo: connection URI is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout)
	if opts.ClientCertificate != nil {
		clientOpts.SetTLSConfig(&tls.Config{
			Certificates: []tls.Certificate{*opts.ClientCertificate},
			MinVersion:   tls.VersionTLS12,
		})
		clientOpts.SetAuth(options.Credential{AuthMechanism: "MONGODB-X509"})
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := &Store{
		client: client,
		users:  client.Database(opts.Database).Collection(opts.Collection),
		logger: logger.With(slog.String("component", "mongo")),
	}

	if _, err := s.users.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "points", Value: -1}, {Key: "_id", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: creating points index: %w", err)
	}

	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// GetByUsername loads one document.
func (s *Store) GetByUsername(ctx context.Context, username string) (*model.UserRecord, error) {
	var u model.UserRecord
	err := s.users.FindOne(ctx, bson.M{"_id": username}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("mongo: getting user %s: %w", username, err)
	}
	return &u, nil
}

// UpsertProfile sets the login-owned fields. Counters are only written when
// the document is inserted, so a relogin never resets them.
func (s *Store) UpsertProfile(ctx context.Context, p model.LoginProfile) error {
	update := bson.M{
		"$set": bson.M{
			"id":          p.ID,
			"displayName": p.DisplayName,
			"avatarUrl":   p.AvatarURL,
			"accessToken": p.AccessToken,
			"lastLogin":   p.LoginAt.UTC(),
		},
		"$setOnInsert": bson.M{
			"points":        0,
			"repoCount":     0,
			"commitCount":   0,
			"dailyCheckIns": 0,
		},
	}

	_, err := s.users.UpdateOne(ctx, bson.M{"_id": p.Username}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: upserting profile of %s: %w", p.Username, err)
	}
	return nil
}

// MergeScan $sets only the scan fields. An inserted document also gets
// dailyCheckIns = 0 so every counter is present.
func (s *Store) MergeScan(ctx context.Context, username string, patch model.ScanPatch) error {
	set := bson.M{
		"repoCount":   patch.RepoCount,
		"commitCount": patch.CommitCount,
		"points":      patch.Points,
		"lastUpdated": patch.UpdatedAt.UTC(),
	}
	if patch.FullScanAt != nil {
		set["lastFullScan"] = patch.FullScanAt.UTC()
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"dailyCheckIns": 0},
	}

	_, err := s.users.UpdateOne(ctx, bson.M{"_id": username}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: merging scan of %s: %w", username, err)
	}
	return nil
}

// IncrementCheckIn applies $inc without upsert and returns the document as
// it is right after this update.
func (s *Store) IncrementCheckIn(ctx context.Context, username string, at time.Time) (model.CheckInResult, error) {
	update := bson.M{
		"$inc": bson.M{"points": 1, "dailyCheckIns": 1},
		"$set": bson.M{"lastCheckIn": at.UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetUpsert(false).
		SetProjection(bson.M{"points": 1, "dailyCheckIns": 1})

	var u model.UserRecord
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": username}, update, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.CheckInResult{}, apperror.NotFound("user", username)
		}
		return model.CheckInResult{}, fmt.Errorf("mongo: checking in %s: %w", username, err)
	}
	return model.CheckInResult{Points: u.Points, DailyCheckIns: u.DailyCheckIns}, nil
}

// Leaderboard sorts by points descending, then username.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]model.UserRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "points", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: querying leaderboard: %w", err)
	}

	users := []model.UserRecord{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongo: reading leaderboard: %w", err)
	}
	return users, nil
}
