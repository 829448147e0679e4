package pathcodec

import (
	"testing"

	"github.com/openrfs/rfsd/internal/rfserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/a/b/c", "/a/b/c"},
		{"a/b/c", "/a/b/c"},
		{"/a//b///c", "/a/b/c"},
		{"/a/./b", "/a/b"},
		{"", "/"},
		{"/", "/"},
		{`\a\b`, "/a/b"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeEscapesRoot(t *testing.T) {
	_, err := Normalize("/a/../../b")
	require.Error(t, err)
	rerr, ok := rfserr.As(err)
	require.True(t, ok)
	assert.Equal(t, rfserr.EINVAL, rerr.Code)

	_, err = Normalize("..")
	require.Error(t, err)
}

func TestNormalizeSegments(t *testing.T) {
	got, err := NormalizeSegments([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", got)

	_, err = NormalizeSegments([]string{"a", "..", "b"})
	require.Error(t, err)
}

func TestToFsPath(t *testing.T) {
	c := New("/srv/data")
	assert.Equal(t, "/srv/data", c.ToFsPath("/"))
	assert.Equal(t, "/srv/data/a/b", c.ToFsPath("/a/b"))
}

func TestChildPathOf(t *testing.T) {
	got, err := ChildPathOf("/", "foo")
	require.NoError(t, err)
	assert.Equal(t, "/foo", got)

	got, err = ChildPathOf("/a/b", "foo")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/foo", got)

	for _, bad := range []string{"", ".", "..", "a/b"} {
		_, err := ChildPathOf("/a", bad)
		require.Error(t, err, bad)
	}
}

func TestBasename(t *testing.T) {
	assert.Equal(t, "/", Basename("/"))
	assert.Equal(t, "c", Basename("/a/b/c"))
	assert.Equal(t, "a", Basename("/a"))
}
