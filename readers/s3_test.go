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
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tabular/core"
)

// fakeS3 serves objects from memory.
type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s", aws.ToString(in.Key))
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://data/in/people.csv")
	require.NoError(t, err)
	assert.Equal(t, "data", bucket)
	assert.Equal(t, "in/people.csv", key)

	_, _, err = ParseS3URL("https://data/in.csv")
	assert.Error(t, err)
}

func TestS3Reader_ReadTable(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{
		"in/a.csv":   []byte("id,v\n1,NA\n"),
		"in/b.jsonl": []byte(`{"id": 2, "v": 1.5}` + "\n"),
		"in/c.txt":   []byte("x"),
	}}
	r := NewS3ReaderWithClient(client, WithS3CSVOptions(WithCSVNullMarker("NA")))

	table, err := r.ReadTable(context.Background(), "bucket", "in/a.csv")
	require.NoError(t, err)
	assert.Nil(t, table.Rows[0]["v"])

	table, err = r.ReadTable(context.Background(), "bucket", "in/b.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 1.5, table.Rows[0]["v"])

	_, err = r.ReadTable(context.Background(), "bucket", "in/c.txt")
	var serr *S3ReaderError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "detect_format", serr.Op)

	_, err = r.ReadTable(context.Background(), "bucket", "in/missing.csv")
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "get_object", serr.Op)

	assert.Equal(t, int64(2), r.Stats().ObjectsRead)
}

func TestS3Reader_ReadPrefix(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{
		"part-2.csv": []byte("id,amount\n3,2.5\n"),
		"part-1.csv": []byte("id,amount\n1,10\n2,20\n"),
		"readme.md":  []byte("skip"),
	}}
	r := NewS3ReaderWithClient(client)
	table, err := r.ReadPrefix(context.Background(), "bucket", "", ".csv")
	require.NoError(t, err)
	assert.Equal(t, core.TypeFloat, table.Schema[1].Type)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, int64(1), table.Rows[0]["id"])
	assert.Equal(t, 10.0, table.Rows[0]["amount"])
	assert.Equal(t, 2.5, table.Rows[2]["amount"])
	assert.Equal(t, int64(3), r.Stats().ObjectsListed)

	_, err = r.ReadPrefix(context.Background(), "bucket", "none/", "")
	assert.Error(t, err)
}

func TestConcat_Mismatch(t *testing.T) {
	a, err := ParseCSV(strings.NewReader("id\n1\n"))
	require.NoError(t, err)
	b, err := ParseCSV(strings.NewReader("key\n1\n"))
	require.NoError(t, err)
	_, err = Concat(a, b)
	assert.ErrorIs(t, err, core.ErrSchema)

	c, err := ParseCSV(strings.NewReader("id\nx\n"))
	require.NoError(t, err)
	_, err = Concat(a, c)
	assert.ErrorIs(t, err, core.ErrType)
}
