// Package mongostore persists link records in MongoDB.
//
// Links live in one collection, one document per record, keyed by the
// compound unique index (path_id, depth). Path ids come from an atomic
// counter document. Mutations run inside multi-document transactions, so
// the deployment must be a replica set or sharded cluster; standalone
// servers reject transactions.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/pathdag/pathdag/pkg/observability"
	"github.com/pathdag/pathdag/pkg/pathdag"
)

// counterID is the _id of the path-id counter document.
const counterID = "path_id"

// Config holds the connection settings for a store.
type Config struct {
	// URI is the MongoDB connection string.
	URI string

	// Database is the database name. Required.
	Database string

	// Collection is the link collection name. Defaults to "links".
	Collection string

	// Counters is the counter collection name. Defaults to "counters".
	Counters string

	// ConnectTimeout bounds the initial connect and ping. Defaults to 10s.
	ConnectTimeout time.Duration
}

func (c *Config) withDefaults() {
	if c.Collection == "" {
		c.Collection = "links"
	}
	if c.Counters == "" {
		c.Counters = "counters"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Store is a MongoDB-backed pathdag.Store. Use Open to create one.
type Store struct {
	client   *mongo.Client
	links    *mongo.Collection
	counters *mongo.Collection

	alloc pathdag.PathAllocator
}

// Option configures a Store.
type Option func(*Store)

// WithAllocator routes path-id allocation through an external allocator
// instead of the counter document.
func WithAllocator(a pathdag.PathAllocator) Option {
	return func(s *Store) { s.alloc = a }
}

// Open connects to MongoDB, verifies the connection and ensures the
// link-collection indexes exist.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongostore: URI required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongostore: database name required")
	}
	cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority()))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:   client,
		links:    db.Collection(cfg.Collection),
		counters: db.Collection(cfg.Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.links.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "path_id", Value: 1}, {Key: "depth", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "entity", Value: 1}, {Key: "path_id", Value: 1}}},
		{Keys: bson.D{{Key: "parent", Value: 1}, {Key: "path_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// View executes fn against the link collection outside a transaction.
// Reads use majority read concern.
func (s *Store) View(ctx context.Context, fn func(pathdag.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&readTx{ctx: ctx, links: s.links})
}

// Update executes fn inside one multi-document transaction. Write conflicts
// and other transient transaction errors surface as
// pathdag.ErrStorageConflict; the caller decides whether to retry.
func (s *Store) Update(ctx context.Context, fn func(pathdag.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		tx := &writeTx{
			readTx: readTx{ctx: sc, links: s.links},
			store:  s,
		}
		return nil, fn(tx)
	})
	if err != nil {
		if isTransient(err) {
			observability.Store().OnConflict(ctx, "mongo")
			return fmt.Errorf("transaction: %w", pathdag.ErrStorageConflict)
		}
		return err
	}
	observability.Store().OnCommit(ctx, "mongo", time.Since(start))
	return nil
}

// Close disconnects from the server.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// isTransient reports whether err is a retryable transaction failure
// (write conflict, stale primary, unknown commit outcome).
func isTransient(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.HasErrorLabel("TransientTransactionError") ||
			ce.HasErrorLabel("UnknownTransactionCommitResult")
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		return we.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// =============================================================================
// Transactions
// =============================================================================

type readTx struct {
	ctx   context.Context
	links *mongo.Collection
}

func (tx *readTx) find(filter bson.M, sort bson.D) ([]pathdag.Link, error) {
	cur, err := tx.links.Find(tx.ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("find %v: %w", filter, err)
	}
	var out []pathdag.Link
	if err := cur.All(tx.ctx, &out); err != nil {
		return nil, fmt.Errorf("decode links: %w", err)
	}
	return out, nil
}

func (tx *readTx) ByEntity(entity int64) ([]pathdag.Link, error) {
	return tx.find(bson.M{"entity": entity},
		bson.D{{Key: "path_id", Value: 1}, {Key: "depth", Value: 1}})
}

func (tx *readTx) ByParent(parent int64) ([]pathdag.Link, error) {
	return tx.find(bson.M{"parent": parent},
		bson.D{{Key: "path_id", Value: 1}, {Key: "depth", Value: 1}})
}

func (tx *readTx) ByPath(pathID int64) ([]pathdag.Link, error) {
	return tx.find(bson.M{"path_id": pathID}, bson.D{{Key: "depth", Value: 1}})
}

func (tx *readTx) All() ([]pathdag.Link, error) {
	return tx.find(bson.M{},
		bson.D{{Key: "path_id", Value: 1}, {Key: "depth", Value: 1}})
}

type writeTx struct {
	readTx
	store *Store
}

func (tx *writeTx) Insert(links ...pathdag.Link) error {
	if len(links) == 0 {
		return nil
	}
	docs := make([]any, len(links))
	for i, l := range links {
		docs[i] = l
	}
	if _, err := tx.links.InsertMany(tx.ctx, docs); err != nil {
		return fmt.Errorf("insert %d links: %w", len(links), err)
	}
	return nil
}

func (tx *writeTx) DeletePath(pathID int64) error {
	if _, err := tx.links.DeleteMany(tx.ctx, bson.M{"path_id": pathID}); err != nil {
		return fmt.Errorf("delete path %d: %w", pathID, err)
	}
	return nil
}

func (tx *writeTx) UpdateAttrs(entity, parent int64, attrs pathdag.Attributes) (int, error) {
	update := bson.M{"$set": bson.M{"attrs": attrs}}
	if attrs == nil {
		update = bson.M{"$unset": bson.M{"attrs": ""}}
	}
	res, err := tx.links.UpdateMany(tx.ctx, bson.M{"entity": entity, "parent": parent}, update)
	if err != nil {
		return 0, fmt.Errorf("update attrs %d→%d: %w", parent, entity, err)
	}
	return int(res.MatchedCount), nil
}

func (tx *writeTx) NextPathID() (int64, error) {
	if tx.store.alloc != nil {
		return tx.store.alloc.NextPathID(tx.ctx)
	}
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := tx.store.counters.FindOneAndUpdate(tx.ctx,
		bson.M{"_id": counterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next path id: %w", err)
	}
	return doc.Seq, nil
}
