package objstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dagforge/internal/testutil"
)

func put(t *testing.T, c Client, bucket, name, content string) {
	t.Helper()
	_, err := c.Put(context.Background(), bucket, name, strings.NewReader(content))
	require.NoError(t, err)
}

func names(refs []ObjectRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}

func TestLocal_PutAndList(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c := NewLocal(root)

	ref, err := c.Put(ctx, "raw", "inbound/b.csv", strings.NewReader("id\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, ObjectRef{Bucket: "raw", Name: "inbound/b.csv", Size: 5}, ref)
	assert.Equal(t, "gs://raw/inbound/b.csv", ref.URI())
	put(t, c, "raw", "inbound/a.csv", "x")
	put(t, c, "raw", "archival/old.csv", "y")

	content, err := os.ReadFile(filepath.Join(root, "raw", "inbound", "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(content))

	refs, err := c.List(ctx, "raw", "inbound/")
	require.NoError(t, err)
	assert.Equal(t, []string{"inbound/a.csv", "inbound/b.csv"}, names(refs))

	all, err := c.List(ctx, "raw", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"archival/old.csv", "inbound/a.csv", "inbound/b.csv"}, names(all))
}

func TestLocal_ListMissingBucket(t *testing.T) {
	refs, err := NewLocal(t.TempDir()).List(context.Background(), "nope", "")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestLocal_CopyAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(t.TempDir())
	put(t, c, "raw", "inbound/a.csv", "abc")

	refs, err := c.List(ctx, "raw", "inbound/")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	copied, err := c.Copy(ctx, refs[0], "archival/a.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(3), copied.Size)

	require.NoError(t, c.Delete(ctx, refs[0]))
	err = c.Delete(ctx, refs[0])
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = c.Copy(ctx, refs[0], "x.csv")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocal_RejectsInvalidNames(t *testing.T) {
	c := NewLocal(t.TempDir())
	tests := []struct {
		name   string
		bucket string
		object string
	}{
		{name: "empty bucket", bucket: "", object: "a.csv"},
		{name: "bucket with slash", bucket: "a/b", object: "a.csv"},
		{name: "parent bucket", bucket: "..", object: "a.csv"},
		{name: "empty object", bucket: "raw", object: ""},
		{name: "escape", bucket: "raw", object: "../other/a.csv"},
		{name: "absolute", bucket: "raw", object: "/etc/passwd"},
		{name: "unclean", bucket: "raw", object: "inbound//a.csv"},
		{name: "directory", bucket: "raw", object: "inbound/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Put(context.Background(), tt.bucket, tt.object, strings.NewReader("x"))
			assert.Error(t, err)
		})
	}
}

func TestOrganize(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(t.TempDir())
	put(t, c, "raw", "inbound/patients_2024-01-01-00.csv", "a")
	put(t, c, "raw", "inbound/patients_2024-01-01-01.csv", "b")
	put(t, c, "raw", "inbound/notes.txt", "c")

	moves, err := Organize(ctx, c, "raw", "inbound/", "archival/", ".csv", testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, "inbound/patients_2024-01-01-00.csv", moves[0].From.Name)
	assert.Equal(t, "archival/patients_2024-01-01-00.csv", moves[0].To.Name)

	inbound, err := c.List(ctx, "raw", "inbound/")
	require.NoError(t, err)
	assert.Equal(t, []string{"inbound/notes.txt"}, names(inbound))

	archived, err := c.List(ctx, "raw", "archival/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"archival/patients_2024-01-01-00.csv",
		"archival/patients_2024-01-01-01.csv",
	}, names(archived))
}

func TestOrganize_NoFiles(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(t.TempDir())
	put(t, c, "raw", "inbound/notes.txt", "c")

	moves, err := Organize(ctx, c, "raw", "inbound/", "failed/", ".csv", nil)
	assert.Empty(t, moves)
	assert.True(t, errors.Is(err, ErrNoFilesFound))
	assert.ErrorContains(t, err, "gs://raw/inbound/")
}

func TestOrganize_Cancelled(t *testing.T) {
	c := NewLocal(t.TempDir())
	put(t, c, "raw", "inbound/a.csv", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Organize(ctx, c, "raw", "inbound/", "archival/", ".csv", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
