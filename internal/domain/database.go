package domain

import (
	"context"
	"io"
)

// Dumper produces a plain SQL dump of one database on w.
type Dumper interface {
	Dump(ctx context.Context, conn Connection, database string, w io.Writer) error
	GetType() Engine
}
