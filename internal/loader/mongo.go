package loader

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore writes each table as a collection of one database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to uri and pings the server.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Insert writes rows in order. A write error stops the batch; the documents
// before it are reported through a *PartialInsertError.
func (m *MongoStore) Insert(ctx context.Context, table string, cols []Column, rows [][]interface{}) error {
	opts := options.InsertMany().SetOrdered(true)
	if _, err := m.db.Collection(table).InsertMany(ctx, toDocuments(cols, rows), opts); err != nil {
		return insertError(err)
	}
	return nil
}

// insertError turns an ordered bulk write failure into a *PartialInsertError.
// Failures without a write error index leave the committed count unknown and
// are returned as they are.
func insertError(err error) error {
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		first := bwe.WriteErrors[0].Index
		for _, we := range bwe.WriteErrors[1:] {
			if we.Index < first {
				first = we.Index
			}
		}
		return &PartialInsertError{Inserted: first, Err: err}
	}
	return fmt.Errorf("insert many: %w", err)
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}

// toDocuments keeps column order and leaves NULL values out.
func toDocuments(cols []Column, rows [][]interface{}) []interface{} {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		doc := make(bson.D, 0, len(cols))
		for i, c := range cols {
			if i < len(row) && row[i] != nil {
				doc = append(doc, bson.E{Key: c.Name, Value: row[i]})
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
