package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Local stores objects as files under <root>/<bucket>/<name>.
type Local struct {
	root string
}

var _ Client = (*Local)(nil)

// NewLocal returns a client rooted at root.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Root returns the directory buckets live in.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) objectPath(bucket, name string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := path.Clean(name)
	if name == "" || strings.HasSuffix(name, "/") || path.IsAbs(clean) || clean == "." ||
		clean == ".." || strings.HasPrefix(clean, "../") || clean != name {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(l.root, bucket, filepath.FromSlash(name)), nil
}

// List implements Client.
func (l *Local) List(ctx context.Context, bucket, prefix string) ([]ObjectRef, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) {
		return nil, fmt.Errorf("invalid bucket %q", bucket)
	}
	base := filepath.Join(l.root, bucket)

	var refs []ObjectRef
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == base {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		refs = append(refs, ObjectRef{Bucket: bucket, Name: name, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(refs, func(a, b ObjectRef) int { return strings.Compare(a.Name, b.Name) })
	return refs, nil
}

// Copy implements Client.
func (l *Local) Copy(ctx context.Context, ref ObjectRef, newName string) (ObjectRef, error) {
	f, err := l.Open(ctx, ref)
	if err != nil {
		return ObjectRef{}, err
	}
	defer func() { _ = f.Close() }()

	return l.Put(ctx, ref.Bucket, newName, f)
}

// Delete implements Client.
func (l *Local) Delete(ctx context.Context, ref ObjectRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.objectPath(ref.Bucket, ref.Name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref.URI())
		}
		return err
	}
	return nil
}

// Put implements Client. The object appears atomically.
func (l *Local) Put(ctx context.Context, bucket, name string, r io.Reader) (ObjectRef, error) {
	if err := ctx.Err(); err != nil {
		return ObjectRef{}, err
	}
	p, err := l.objectPath(bucket, name)
	if err != nil {
		return ObjectRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return ObjectRef{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return ObjectRef{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return ObjectRef{}, err
	}
	if err := tmp.Close(); err != nil {
		return ObjectRef{}, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return ObjectRef{}, err
	}
	return ObjectRef{Bucket: bucket, Name: name, Size: n}, nil
}

// Open returns a reader for the object's content.
func (l *Local) Open(ctx context.Context, ref ObjectRef) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.objectPath(ref.Bucket, ref.Name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.URI())
		}
		return nil, err
	}
	return f, nil
}
