package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/b3datalake/datalake-api/internal/config"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectWithRetry retries ConnectMongo with exponential backoff to tolerate
// the store coming up after the API container.
func ConnectWithRetry(ctx context.Context, uri string, timeout time.Duration, attempts int, backoff time.Duration, onRetry func(attempt int, err error)) (*mongo.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client, err := ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("mongo unavailable after %d attempts: %w", attempts, lastErr)
}

// Collections groups the three handles the API works with.
type Collections struct {
	History  *mongo.Collection
	Datalake *mongo.Collection
	Accounts *mongo.Collection
}

// OpenCollections resolves the configured database/collection names.
func OpenCollections(client *mongo.Client, cfg config.MongoDBConfig) Collections {
	return Collections{
		History:  client.Database(cfg.HistoryDatabase).Collection(cfg.HistoryCollection),
		Datalake: client.Database(cfg.DatalakeDatabase).Collection(cfg.DatalakeCollection),
		Accounts: client.Database(cfg.AccountsDatabase).Collection(cfg.AccountsCollection),
	}
}

// Initialize makes sure the collections exist and carries the indexes the
// API relies on: unique filename in history, unique username in accounts
// and lookup indexes on the searchable datalake fields.
func Initialize(ctx context.Context, cols Collections) error {
	for _, col := range []*mongo.Collection{cols.History, cols.Datalake, cols.Accounts} {
		if err := ensureCollection(ctx, col); err != nil {
			return err
		}
	}

	if _, err := cols.History.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "filename", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("history index: %w", err)
	}
	if _, err := cols.History.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "upload_date", Value: 1}},
	}); err != nil {
		return fmt.Errorf("history date index: %w", err)
	}
	if _, err := cols.Accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("accounts index: %w", err)
	}
	if _, err := cols.Datalake.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "TckrSymb", Value: 1}}},
		{Keys: bson.D{{Key: "RptDt", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("datalake indexes: %w", err)
	}
	return nil
}

func ensureCollection(ctx context.Context, col *mongo.Collection) error {
	names, err := col.Database().ListCollectionNames(ctx, bson.M{"name": col.Name()})
	if err != nil {
		return fmt.Errorf("list collections in %s: %w", col.Database().Name(), err)
	}
	if len(names) > 0 {
		return nil
	}
	if err := col.Database().CreateCollection(ctx, col.Name()); err != nil {
		if ce, ok := err.(mongo.CommandError); ok && ce.Name == "NamespaceExists" {
			return nil
		}
		return fmt.Errorf("create collection %s.%s: %w", col.Database().Name(), col.Name(), err)
	}
	return nil
}
