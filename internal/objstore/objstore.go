// Package objstore is a minimal object-store client used to stage
// synthetic files and to run a pipeline's organizing step outside the
// orchestrator. Objects are addressed as bucket plus name, and names use
// '/' separated prefixes as in GCS.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrNoFilesFound is returned by Organize when no object matches.
var ErrNoFilesFound = errors.New("no files found")

// ErrNotFound is returned for a missing object.
var ErrNotFound = errors.New("object not found")

// ObjectRef identifies one stored object.
type ObjectRef struct {
	Bucket string
	Name   string
	Size   int64
}

// URI returns the gs:// form of the reference.
func (r ObjectRef) URI() string {
	return "gs://" + r.Bucket + "/" + r.Name
}

// Client is the subset of object-store operations dagforge needs.
type Client interface {
	// List returns objects whose name starts with prefix, sorted by name.
	List(ctx context.Context, bucket, prefix string) ([]ObjectRef, error)
	// Copy copies ref to newName in the same bucket.
	Copy(ctx context.Context, ref ObjectRef, newName string) (ObjectRef, error)
	// Delete removes ref.
	Delete(ctx context.Context, ref ObjectRef) error
	// Put stores the content of r under name.
	Put(ctx context.Context, bucket, name string, r io.Reader) (ObjectRef, error)
}

// Move records one relocated object.
type Move struct {
	From ObjectRef
	To   ObjectRef
}

// Organize moves every object under from whose name ends with suffix to
// the same relative name under to. It mirrors the organizing callables in
// generated file-mode pipelines and fails with ErrNoFilesFound when there
// is nothing to move.
func Organize(ctx context.Context, c Client, bucket, from, to, suffix string, logger *slog.Logger) ([]Move, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	objects, err := c.List(ctx, bucket, from)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s: %w", bucket, from, err)
	}

	var matching []ObjectRef
	for _, obj := range objects {
		if strings.HasSuffix(obj.Name, suffix) {
			matching = append(matching, obj)
		}
	}
	if len(matching) == 0 {
		return nil, fmt.Errorf("%w in gs://%s/%s to move", ErrNoFilesFound, bucket, from)
	}

	moves := make([]Move, 0, len(matching))
	for _, obj := range matching {
		if err := ctx.Err(); err != nil {
			return moves, err
		}
		dest := to + strings.TrimPrefix(obj.Name, from)
		copied, err := c.Copy(ctx, obj, dest)
		if err != nil {
			return moves, fmt.Errorf("copying %s: %w", obj.URI(), err)
		}
		if err := c.Delete(ctx, obj); err != nil {
			return moves, fmt.Errorf("deleting %s: %w", obj.URI(), err)
		}
		logger.Info("moved object", "from", obj.Name, "to", dest)
		moves = append(moves, Move{From: obj, To: copied})
	}
	return moves, nil
}
