//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Tabular.
//
// Tabular is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tabular is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tabular. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aaronlmathis/tabular/core"
)

// This file reads MongoDB collections into Tables. Documents are flat rows;
// nested documents and arrays are rejected.

// MongoReaderError provides structured error information for MongoDB reader operations
type MongoReaderError struct {
	Op         string // Operation that failed (e.g., "connect", "query", "decode")
	Collection string // Collection being accessed when error occurred
	Err        error  // Underlying error
}

func (e *MongoReaderError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo reader %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo reader %s: %v", e.Op, e.Err)
}

func (e *MongoReaderError) Unwrap() error {
	return e.Err
}

// MongoReaderStats holds statistics about the MongoDB reader's performance
type MongoReaderStats struct {
	RecordsRead     int64
	QueriesExecuted int64
	ReadDuration    time.Duration
	NullValueCounts map[string]int64
}

// MongoReaderOptions configures the MongoDB reader
type MongoReaderOptions struct {
	URI            string        // MongoDB connection URI
	Database       string        // Database name
	Collection     string        // Collection name
	Filter         bson.M        // Query filter for find operations
	Projection     bson.M        // Field projection
	Sort           bson.D        // Sort specification
	Pipeline       []bson.M      // Aggregation pipeline; replaces Filter when set
	BatchSize      int32         // Batch size for cursor
	Limit          int64         // Maximum number of documents to read
	Timeout        time.Duration // Connect and query timeout
	ReadPreference string        // primary, secondary, ...
	Username       string
	Password       string
	AuthDatabase   string
	TLS            bool
	TLSInsecure    bool
}

// ReaderOptionMongo is a functional option for MongoReaderOptions
type ReaderOptionMongo func(*MongoReaderOptions)

func WithMongoURI(uri string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.URI = uri }
}

func WithMongoDB(database string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Database = database }
}

func WithMongoCollection(collection string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Collection = collection }
}

func WithMongoFilter(filter bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Filter = filter }
}

func WithMongoProjection(projection bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Projection = projection }
}

func WithMongoSort(sort bson.D) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Sort = sort }
}

func WithMongoPipeline(pipeline []bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Pipeline = pipeline }
}

func WithMongoLimit(limit int64) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Limit = limit }
}

func WithMongoTimeout(timeout time.Duration) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Timeout = timeout }
}

func WithMongoReadPreference(preference string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.ReadPreference = preference }
}

func WithMongoAuth(username, password, authDB string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.Username = username
		opts.Password = password
		opts.AuthDatabase = authDB
	}
}

func WithMongoTLS(enabled, insecure bool) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) {
		opts.TLS = enabled
		opts.TLSInsecure = insecure
	}
}

// MongoReader reads a collection into a Table.
type MongoReader struct {
	opts  *MongoReaderOptions
	stats MongoReaderStats
}

// NewMongoReader creates a new MongoDB reader with configurable options
func NewMongoReader(options ...ReaderOptionMongo) (*MongoReader, error) {
	opts := &MongoReaderOptions{
		URI:            "mongodb://localhost:27017",
		BatchSize:      1000,
		Timeout:        30 * time.Second,
		ReadPreference: "primary",
	}
	for _, option := range options {
		option(opts)
	}

	if opts.Database == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}
	if opts.Collection == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("collection name is required")}
	}
	return &MongoReader{
		opts:  opts,
		stats: MongoReaderStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Stats returns read statistics.
func (mr *MongoReader) Stats() MongoReaderStats {
	return mr.stats
}

// ReadTable connects, runs the query and converts every document. fields
// fixes the column order; when empty, the keys of the first document are
// used. Documents missing a field read it as null.
func (mr *MongoReader) ReadTable(ctx context.Context, fields []string) (*core.Table, error) {
	start := time.Now()
	defer func() { mr.stats.ReadDuration += time.Since(start) }()

	if mr.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mr.opts.Timeout)
		defer cancel()
	}

	clientOpts, err := mr.buildClientOptions()
	if err != nil {
		return nil, &MongoReaderError{Op: "build_options", Err: err}
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, &MongoReaderError{Op: "connect", Err: err}
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		return nil, &MongoReaderError{Op: "ping", Err: err}
	}

	collection := client.Database(mr.opts.Database).Collection(mr.opts.Collection)
	cursor, err := mr.query(ctx, collection)
	if err != nil {
		return nil, &MongoReaderError{Op: "query", Collection: mr.opts.Collection, Err: err}
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &MongoReaderError{Op: "decode", Collection: mr.opts.Collection, Err: err}
	}
	table, err := mr.documentsToTable(docs, fields)
	if err != nil {
		return nil, err
	}
	mr.stats.RecordsRead += int64(table.Len())
	return table, nil
}

func (mr *MongoReader) query(ctx context.Context, collection *mongo.Collection) (*mongo.Cursor, error) {
	mr.stats.QueriesExecuted++
	if len(mr.opts.Pipeline) > 0 {
		aggOpts := options.Aggregate()
		if mr.opts.BatchSize > 0 {
			aggOpts.SetBatchSize(mr.opts.BatchSize)
		}
		return collection.Aggregate(ctx, mr.opts.Pipeline, aggOpts)
	}

	findOpts := options.Find()
	if mr.opts.BatchSize > 0 {
		findOpts.SetBatchSize(mr.opts.BatchSize)
	}
	if mr.opts.Limit > 0 {
		findOpts.SetLimit(mr.opts.Limit)
	}
	if mr.opts.Projection != nil {
		findOpts.SetProjection(mr.opts.Projection)
	}
	if mr.opts.Sort != nil {
		findOpts.SetSort(mr.opts.Sort)
	}
	filter := mr.opts.Filter
	if filter == nil {
		filter = bson.M{}
	}
	return collection.Find(ctx, filter, findOpts)
}

// buildClientOptions constructs MongoDB client options from reader configuration
func (mr *MongoReader) buildClientOptions() (*options.ClientOptions, error) {
	clientOpts := options.Client().ApplyURI(mr.opts.URI)
	if mr.opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(mr.opts.Timeout)
	}

	if mr.opts.Username != "" && mr.opts.Password != "" {
		auth := options.Credential{
			Username:   mr.opts.Username,
			Password:   mr.opts.Password,
			AuthSource: mr.opts.AuthDatabase,
		}
		if auth.AuthSource == "" {
			auth.AuthSource = mr.opts.Database
		}
		clientOpts.SetAuth(auth)
	}

	if mr.opts.TLS {
		clientOpts.SetTLSConfig(&tls.Config{InsecureSkipVerify: mr.opts.TLSInsecure})
	}

	if mr.opts.ReadPreference != "" {
		var readPref *readpref.ReadPref
		switch mr.opts.ReadPreference {
		case "primary":
			readPref = readpref.Primary()
		case "primaryPreferred":
			readPref = readpref.PrimaryPreferred()
		case "secondary":
			readPref = readpref.Secondary()
		case "secondaryPreferred":
			readPref = readpref.SecondaryPreferred()
		case "nearest":
			readPref = readpref.Nearest()
		default:
			return nil, fmt.Errorf("invalid read preference: %s", mr.opts.ReadPreference)
		}
		clientOpts.SetReadPreference(readPref)
	}
	return clientOpts, nil
}

// documentsToTable converts decoded documents into a Table.
func (mr *MongoReader) documentsToTable(docs []bson.D, fields []string) (*core.Table, error) {
	if len(fields) == 0 && len(docs) > 0 {
		for _, e := range docs[0] {
			fields = append(fields, e.Key)
		}
	}
	rows := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		row := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			row[f] = nil
		}
		for _, e := range doc {
			if _, wanted := row[e.Key]; !wanted {
				continue
			}
			v, err := convertBSONValue(e.Value)
			if err != nil {
				return nil, core.WithField(err, e.Key)
			}
			row[e.Key] = v
		}
		for _, f := range fields {
			if row[f] == nil {
				mr.stats.NullValueCounts[f]++
			}
		}
		rows[i] = row
	}
	return buildTable(fields, rows, core.KindSchema)
}

// convertBSONValue converts BSON scalars to table values.
func convertBSONValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil, nil
	case int32:
		return int64(v), nil
	case int64, float64, string, bool:
		return v, nil
	case primitive.ObjectID:
		return v.Hex(), nil
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano), nil
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC().Format(time.RFC3339), nil
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return nil, core.NewError(core.KindType, "", "decimal %s is not representable as float", v.String())
		}
		return f, nil
	case primitive.Symbol:
		return string(v), nil
	case bson.D, bson.M, bson.A:
		return nil, core.NewError(core.KindType, "", "nested %T values are not supported", v)
	}
	return nil, core.NewError(core.KindType, "", "unsupported BSON value %T", value)
}
