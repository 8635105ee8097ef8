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
//

package types

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/tabular"
	"github.com/aaronlmathis/tabular/readers"
	"github.com/aaronlmathis/tabular/writers"
)

// OutputFormat represents a supported sink format.
type OutputFormat int

const (
	FormatJSON OutputFormat = iota
	FormatCSV
	FormatParquet
	FormatSQL
)

func (f OutputFormat) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	case FormatSQL:
		return "sql"
	}
	return fmt.Sprintf("OutputFormat(%d)", int(f))
}

// ParseOutputFormat maps a format name to an OutputFormat.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	case "sql":
		return FormatSQL, nil
	}
	return 0, fmt.Errorf("unsupported output format %q", name)
}

// FormatFromPath guesses the format from a file or object key suffix,
// defaulting to JSON.
func FormatFromPath(path string) OutputFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	}
	return FormatJSON
}

// OutputLocation stores a pipeline result in a given format.
type OutputLocation interface {
	Write(ctx context.Context, format OutputFormat, result *tabular.Result) error
}

// ParseLocation returns an S3Location for s3:// targets and a FileLocation
// otherwise.
func ParseLocation(target string) (OutputLocation, error) {
	if strings.HasPrefix(target, "s3://") {
		bucket, key, err := readers.ParseS3URL(target)
		if err != nil {
			return nil, err
		}
		return &S3Location{Bucket: bucket, Key: key}, nil
	}
	return FileLocation{Path: target}, nil
}

// Encode writes result to w. JSON carries rows and summary; CSV and Parquet
// carry the rows only.
func Encode(ctx context.Context, w io.Writer, format OutputFormat, result *tabular.Result) error {
	switch format {
	case FormatJSON:
		return result.WriteJSON(ctx, w, writers.WithJSONIndent("  "))
	case FormatCSV:
		return writers.NewCSVWriter(w).WriteTable(ctx, result.Table)
	case FormatParquet:
		return writers.NewParquetWriter().WriteTable(ctx, w, result.Table)
	}
	return fmt.Errorf("format %s cannot be encoded to a stream", format)
}

// FileLocation writes output to a local filesystem path.
type FileLocation struct {
	Path string
}

// Write creates or truncates the file and encodes the result into it.
func (f FileLocation) Write(ctx context.Context, format OutputFormat, result *tabular.Result) (err error) {
	file, err := os.Create(f.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Encode(ctx, file, format, result)
}

// S3PutAPI is the subset of the S3 client used for uploads.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Location writes objects to an S3 bucket.
type S3Location struct {
	Bucket string
	Key    string
	// Client is created from the default AWS configuration chain when nil.
	Client  S3PutAPI
	Options readers.S3ReaderOptions
}

// Write encodes the result in memory and uploads it as a single object.
func (s *S3Location) Write(ctx context.Context, format OutputFormat, result *tabular.Result) error {
	var buf bytes.Buffer
	if err := Encode(ctx, &buf, format, result); err != nil {
		return err
	}
	if s.Client == nil {
		cfg, err := readers.AWSConfig(ctx, s.Options)
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		s.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if s.Options.EndpointURL != "" {
				o.BaseEndpoint = aws.String(s.Options.EndpointURL)
			}
			o.UsePathStyle = s.Options.ForcePathStyle
		})
	}
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.Key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType(format)),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return nil
}

func contentType(format OutputFormat) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	}
	return "application/json"
}

// SQLLocation directs output rows to a database table.
type SQLLocation struct {
	DB      *sql.DB
	Dialect writers.Dialect
	Options []writers.SQLWriterOption
}

// Write inserts the result rows in one transaction. Only FormatSQL is accepted.
func (l SQLLocation) Write(ctx context.Context, format OutputFormat, result *tabular.Result) error {
	if format != FormatSQL {
		return fmt.Errorf("unsupported format %s for SQLLocation", format)
	}
	w, err := writers.NewSQLWriter(l.DB, l.Dialect, l.Options...)
	if err != nil {
		return err
	}
	return w.WriteTable(ctx, result.Table)
}
