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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/tabular/core"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "list_objects", "get_object", "read")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3ReaderStats holds statistics about the S3 reader's performance
type S3ReaderStats struct {
	ObjectsListed  int64
	ObjectsRead    int64
	RecordsRead    int64
	BytesRead      int64
	ReadDuration   time.Duration
	ProcessedFiles []string
}

// S3ReaderOptions configures the S3 client.
type S3ReaderOptions struct {
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
	CSVOptions     []ReaderOptionCSV
}

// ReaderOptionS3 represents a configuration function for S3Reader
type ReaderOptionS3 func(*S3ReaderOptions)

func WithS3Region(region string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Region = region }
}

func WithS3Profile(profile string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Profile = profile }
}

func WithS3Credentials(creds aws.Credentials) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Credentials = creds }
}

func WithS3Endpoint(endpoint string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.EndpointURL = endpoint }
}

func WithS3PathStyle(pathStyle bool) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.ForcePathStyle = pathStyle }
}

// WithS3CSVOptions sets the options used for CSV objects.
func WithS3CSVOptions(options ...ReaderOptionCSV) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.CSVOptions = options }
}

// S3API is the subset of the S3 client the reader uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader reads CSV, JSON and Parquet objects into Tables.
type S3Reader struct {
	client S3API
	opts   S3ReaderOptions
	stats  S3ReaderStats
}

// NewS3Reader creates an S3 reader using the default AWS configuration chain.
func NewS3Reader(ctx context.Context, options ...ReaderOptionS3) (*S3Reader, error) {
	var opts S3ReaderOptions
	for _, option := range options {
		option(&opts)
	}
	cfg, err := AWSConfig(ctx, opts)
	if err != nil {
		return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	return NewS3ReaderWithClient(client, options...), nil
}

// NewS3ReaderWithClient creates an S3 reader over an existing client.
func NewS3ReaderWithClient(client S3API, options ...ReaderOptionS3) *S3Reader {
	var opts S3ReaderOptions
	for _, option := range options {
		option(&opts)
	}
	return &S3Reader{client: client, opts: opts}
}

// AWSConfig loads the AWS configuration, applying region, profile and
// explicit credentials when set.
func AWSConfig(ctx context.Context, opts S3ReaderOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}
	return cfg, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %s", raw)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Stats returns read statistics.
func (s *S3Reader) Stats() S3ReaderStats {
	return s.stats
}

// ReadTable reads one object. The format follows the key suffix: .csv,
// .json, .jsonl/.ndjson or .parquet.
func (s *S3Reader) ReadTable(ctx context.Context, bucket, key string) (*core.Table, error) {
	start := time.Now()
	defer func() { s.stats.ReadDuration += time.Since(start) }()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &S3ReaderError{Op: "get_object", Err: fmt.Errorf("s3://%s/%s: %w", bucket, key, err)}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &S3ReaderError{Op: "read", Err: err}
	}
	s.stats.BytesRead += int64(len(data))

	table, err := s.decode(ctx, key, data)
	if err != nil {
		return nil, err
	}
	s.stats.ObjectsRead++
	s.stats.RecordsRead += int64(table.Len())
	s.stats.ProcessedFiles = append(s.stats.ProcessedFiles, key)
	return table, nil
}

func (s *S3Reader) decode(ctx context.Context, key string, data []byte) (*core.Table, error) {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return NewCSVReader(bytes.NewReader(data), s.opts.CSVOptions...).ReadTable(ctx)
	case ".json", ".jsonl", ".ndjson":
		return ParseJSON(bytes.NewReader(data))
	case ".parquet":
		return NewParquetReader().ReadTable(ctx, bytes.NewReader(data))
	}
	return nil, &S3ReaderError{Op: "detect_format", Err: fmt.Errorf("unsupported object type: %s", key)}
}

// ReadPrefix reads every object under prefix whose key ends in suffix, in
// key order, and concatenates them. Objects must agree on column names;
// integer and float columns of the same name merge as float.
func (s *S3Reader) ReadPrefix(ctx context.Context, bucket, prefix, suffix string) (*core.Table, error) {
	keys, err := s.listKeys(ctx, bucket, prefix, suffix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, &S3ReaderError{Op: "list_objects", Err: fmt.Errorf("no objects under s3://%s/%s", bucket, prefix)}
	}
	var tables []*core.Table
	for _, key := range keys {
		t, err := s.ReadTable(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return Concat(tables...)
}

func (s *S3Reader) listKeys(ctx context.Context, bucket, prefix, suffix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &S3ReaderError{Op: "list_objects", Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			s.stats.ObjectsListed++
			if strings.HasSuffix(key, "/") || (suffix != "" && !strings.HasSuffix(key, suffix)) {
				continue
			}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Concat appends tables that share column names in the same order.
func Concat(tables ...*core.Table) (*core.Table, error) {
	if len(tables) == 0 {
		return &core.Table{}, nil
	}
	schema := append(core.Schema(nil), tables[0].Schema...)
	for _, t := range tables[1:] {
		if len(t.Schema) != len(schema) {
			return nil, core.NewError(core.KindSchema, "", "tables have %d and %d columns", len(schema), len(t.Schema))
		}
		for i, f := range t.Schema {
			cur := schema[i]
			if f.Name != cur.Name {
				return nil, core.NewError(core.KindSchema, f.Name, "expected column %q at position %d", cur.Name, i)
			}
			switch {
			case f.Type == cur.Type:
			case f.Type.Numeric() && cur.Type.Numeric():
				schema[i].Type = core.TypeFloat
			default:
				return nil, core.NewError(core.KindType, f.Name, "column is %s in one table and %s in another", cur.Type, f.Type)
			}
		}
	}
	var rows []core.Record
	for _, t := range tables {
		rows = append(rows, t.Rows...)
	}
	return core.NewTable(schema, rows)
}
