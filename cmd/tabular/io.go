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

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/aaronlmathis/tabular"
	"github.com/aaronlmathis/tabular/core"
	"github.com/aaronlmathis/tabular/readers"
	"github.com/aaronlmathis/tabular/types"
	"github.com/aaronlmathis/tabular/writers"
)

func (a *app) csvOptions() []readers.ReaderOptionCSV {
	var opts []readers.ReaderOptionCSV
	if a.cfg.Pipeline.NullMarker != "" {
		opts = append(opts, readers.WithCSVNullMarker(a.cfg.Pipeline.NullMarker))
	}
	return opts
}

func (a *app) s3Options() readers.S3ReaderOptions {
	opts := readers.S3ReaderOptions{
		Region:         a.cfg.S3.Region,
		EndpointURL:    a.cfg.S3.Endpoint,
		ForcePathStyle: a.cfg.S3.PathStyle,
		CSVOptions:     a.csvOptions(),
	}
	if a.cfg.S3.AccessKeyID != "" {
		opts.Credentials = aws.Credentials{
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
		}
	}
	return opts
}

// readInput loads a table from src:
//
//	-                      CSV on stdin
//	s3://bucket/key        object, format by suffix
//	s3://bucket/prefix/    every .csv object under the prefix
//	http(s)://...          CSV or JSON over HTTP
//	mongo://db/collection  documents via TABULAR_MONGO_URI
//	path                   .json/.jsonl/.ndjson, .parquet, otherwise CSV
func (a *app) readInput(ctx context.Context, src string, stdin io.Reader) (*core.Table, error) {
	a.logger.Debug("reading input", zap.String("source", src))
	switch {
	case src == "-":
		return readers.NewCSVReader(stdin, a.csvOptions()...).ReadTable(ctx)

	case strings.HasPrefix(src, "s3://"):
		bucket, key, err := readers.ParseS3URL(src)
		if err != nil {
			return nil, err
		}
		opts := a.s3Options()
		r, err := readers.NewS3Reader(ctx,
			readers.WithS3Region(opts.Region),
			readers.WithS3Endpoint(opts.EndpointURL),
			readers.WithS3PathStyle(opts.ForcePathStyle),
			readers.WithS3Credentials(opts.Credentials),
			readers.WithS3CSVOptions(opts.CSVOptions...),
		)
		if err != nil {
			return nil, err
		}
		if key == "" || strings.HasSuffix(key, "/") {
			return r.ReadPrefix(ctx, bucket, key, ".csv")
		}
		return r.ReadTable(ctx, bucket, key)

	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return readers.NewHTTPReader(http.DefaultClient,
			readers.WithHTTPCSVOptions(a.csvOptions()...),
		).ReadTable(ctx, src)

	case strings.HasPrefix(src, "mongo://"):
		database, collection, ok := strings.Cut(strings.TrimPrefix(src, "mongo://"), "/")
		if !ok || database == "" || collection == "" {
			return nil, fmt.Errorf("mongo input must be mongo://database/collection, got %q", src)
		}
		r, err := readers.NewMongoReader(
			readers.WithMongoURI(a.cfg.Mongo.URI),
			readers.WithMongoDB(database),
			readers.WithMongoCollection(collection),
		)
		if err != nil {
			return nil, err
		}
		return r.ReadTable(ctx, nil)
	}

	switch strings.ToLower(filepath.Ext(src)) {
	case ".parquet":
		return readers.ReadParquet(ctx, src)
	case ".json", ".jsonl", ".ndjson":
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readers.ParseJSON(f)
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readers.NewCSVReader(f, a.csvOptions()...).ReadTable(ctx)
}

// writeResult sends res to output, or to w when output is empty or "-".
// The format flag wins over the output suffix.
func (a *app) writeResult(ctx context.Context, w io.Writer, res *tabular.Result, output, format string) error {
	f := types.FormatJSON
	switch {
	case format != "":
		parsed, err := types.ParseOutputFormat(format)
		if err != nil {
			return err
		}
		f = parsed
	case output != "" && output != "-":
		f = types.FormatFromPath(output)
	}

	if output == "" || output == "-" {
		return types.Encode(ctx, w, f, res)
	}
	loc, err := types.ParseLocation(output)
	if err != nil {
		return err
	}
	if s3loc, ok := loc.(*types.S3Location); ok {
		s3loc.Options = a.s3Options()
	}
	if err := loc.Write(ctx, f, res); err != nil {
		return err
	}
	a.logger.Info("output written", zap.String("target", output), zap.String("format", f.String()))
	return nil
}

// openDB resolves the dialect and DSN from flags, falling back to config.
func (a *app) openDB(ctx context.Context, driver, dsn string) (*sql.DB, writers.Dialect, error) {
	if driver == "" {
		driver = a.cfg.Database.Driver
	}
	if dsn == "" {
		dsn = a.cfg.Database.URL
	}
	if dsn == "" {
		return nil, writers.Dialect{}, fmt.Errorf("no database DSN: set --dsn or TABULAR_DATABASE_URL")
	}
	dialect, err := writers.DialectFor(driver)
	if err != nil {
		return nil, writers.Dialect{}, err
	}
	db, err := writers.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, writers.Dialect{}, err
	}
	return db, dialect, nil
}
