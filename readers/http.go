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
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aaronlmathis/tabular/core"
)

// HTTPReaderError provides structured error information for HTTP reader operations
type HTTPReaderError struct {
	Op         string // Operation that failed (e.g., "request", "status_check", "read_response")
	StatusCode int    // HTTP status code if applicable
	URL        string // URL being accessed when error occurred
	Err        error  // Underlying error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http reader %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http reader %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP reader's performance
type HTTPReaderStats struct {
	RequestCount  int64
	RecordsRead   int64
	BytesRead     int64
	RetryCount    int64
	RateLimitHits int64
	ReadDuration  time.Duration
}

// HTTPReaderOptions configures the HTTP reader
type HTTPReaderOptions struct {
	Headers         map[string]string // Additional headers
	BearerToken     string            // Sent as Authorization: Bearer
	Timeout         time.Duration     // Request timeout
	RetryAttempts   int               // Number of retry attempts
	RetryDelay      time.Duration     // Base delay between retries
	ResponseFormat  string            // "csv", "json" or "" to detect
	MaxResponseSize int64             // Maximum response size in bytes
	UserAgent       string
	CSVOptions      []ReaderOptionCSV
}

// ReaderOptionHTTP is a functional option for HTTPReaderOptions
type ReaderOptionHTTP func(*HTTPReaderOptions)

func WithHTTPHeaders(headers map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		if opts.Headers == nil {
			opts.Headers = make(map[string]string)
		}
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

func WithHTTPBearerToken(token string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.BearerToken = token }
}

func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.Timeout = timeout }
}

func WithHTTPRetries(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

func WithHTTPResponseFormat(format string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.ResponseFormat = format }
}

func WithHTTPCSVOptions(options ...ReaderOptionCSV) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) { opts.CSVOptions = options }
}

// HTTPReader downloads CSV or JSON documents into Tables.
type HTTPReader struct {
	client *http.Client
	opts   HTTPReaderOptions
	stats  HTTPReaderStats
}

// NewHTTPReader creates a reader. A nil client uses a client with the
// configured timeout.
func NewHTTPReader(client *http.Client, options ...ReaderOptionHTTP) *HTTPReader {
	opts := HTTPReaderOptions{
		Timeout:         30 * time.Second,
		RetryAttempts:   2,
		RetryDelay:      500 * time.Millisecond,
		MaxResponseSize: 100 << 20,
		UserAgent:       "tabular/1.0",
	}
	for _, option := range options {
		option(&opts)
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPReader{client: client, opts: opts}
}

// FetchCSV downloads url and parses it as CSV.
func FetchCSV(ctx context.Context, client *http.Client, url string, options ...ReaderOptionCSV) (*core.Table, error) {
	return NewHTTPReader(client, WithHTTPResponseFormat("csv"), WithHTTPCSVOptions(options...)).ReadTable(ctx, url)
}

// Stats returns read statistics.
func (hr *HTTPReader) Stats() HTTPReaderStats {
	return hr.stats
}

// ReadTable fetches url and parses the body. Without an explicit format the
// Content-Type and then the URL suffix decide between CSV and JSON.
func (hr *HTTPReader) ReadTable(ctx context.Context, rawURL string) (*core.Table, error) {
	start := time.Now()
	defer func() { hr.stats.ReadDuration += time.Since(start) }()

	data, contentType, err := hr.executeRequestWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	var table *core.Table
	switch hr.format(rawURL, contentType) {
	case "json":
		table, err = ParseJSON(bytes.NewReader(data))
	default:
		table, err = NewCSVReader(bytes.NewReader(data), hr.opts.CSVOptions...).ReadTable(ctx)
	}
	if err != nil {
		return nil, err
	}
	hr.stats.RecordsRead += int64(table.Len())
	return table, nil
}

func (hr *HTTPReader) format(rawURL, contentType string) string {
	if hr.opts.ResponseFormat != "" {
		return hr.opts.ResponseFormat
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.Contains(mt, "json"):
			return "json"
		case strings.Contains(mt, "csv"):
			return "csv"
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".json", ".jsonl", ".ndjson":
			return "json"
		}
	}
	return "csv"
}

func (hr *HTTPReader) executeRequestWithRetry(ctx context.Context, url string) ([]byte, string, error) {
	var lastErr error

	for attempt := 0; attempt <= hr.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := hr.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
			hr.stats.RetryCount++
		}

		data, contentType, err := hr.executeRequest(ctx, url)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err

		var httpErr *HTTPReaderError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusTooManyRequests {
				hr.stats.RateLimitHits++
				continue
			}
			if httpErr.StatusCode >= 500 {
				continue
			}
			break
		}
	}
	return nil, "", lastErr
}

func (hr *HTTPReader) executeRequest(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &HTTPReaderError{Op: "create_request", URL: url, Err: err}
	}
	req.Header.Set("User-Agent", hr.opts.UserAgent)
	for k, v := range hr.opts.Headers {
		req.Header.Set(k, v)
	}
	if hr.opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+hr.opts.BearerToken)
	}

	hr.stats.RequestCount++
	resp, err := hr.client.Do(req)
	if err != nil {
		return nil, "", &HTTPReaderError{Op: "request", URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &HTTPReaderError{
			Op:         "status_check",
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, hr.opts.MaxResponseSize+1))
	if err != nil {
		return nil, "", &HTTPReaderError{Op: "read_response", URL: url, Err: err}
	}
	if int64(len(data)) > hr.opts.MaxResponseSize {
		return nil, "", &HTTPReaderError{Op: "read_response", URL: url, Err: fmt.Errorf("response exceeds %d bytes", hr.opts.MaxResponseSize)}
	}
	hr.stats.BytesRead += int64(len(data))
	return data, resp.Header.Get("Content-Type"), nil
}
