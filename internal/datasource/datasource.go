// Package datasource defines how raw input bytes are obtained.
package datasource

import (
	"context"
	"io"
)

// Source opens a readable stream. Implementations must honor ctx at call
// time; the returned reader is owned by the caller.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
