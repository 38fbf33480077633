// Package graph is the Bolt client used by the trust graph. Cypher runs inside managed
// transactions; Result flattens records into plain maps so callers do not depend on driver
// types.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// Client is the contract consumed by graph-backed stores.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result is a flattened query response.
type Result struct {
	Records []Record
}

// Record maps return aliases to values.
type Record map[string]any

// Int64 reads an integer column. Bolt integers decode as int64; the memory client may hand
// back plain ints.
func (r Record) Int64(key string) (int64, error) {
	switch v := r[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("record has no %q", key)
	default:
		return 0, fmt.Errorf("record %q is %T, not an integer", key, v)
	}
}

// Bool reads a boolean column; a missing column is false.
func (r Record) Bool(key string) bool {
	v, _ := r[key].(bool)
	return v
}

// Options configures the Bolt client.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
