package fileops

import (
	"strconv"
	"testing"

	"github.com/openrfs/rfsd/internal/backingstore"
	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/pathcodec"
	"github.com/openrfs/rfsd/internal/rfserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOps(t *testing.T) (*Ops, *metastore.Store, *backingstore.Store, *pathcodec.Codec) {
	t.Helper()
	root := t.TempDir()
	meta, err := metastore.Open(metastore.Config{Dialect: metastore.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	backing := backingstore.New(root)
	codec := pathcodec.New(root)

	st, err := backing.Lstat(root)
	require.NoError(t, err)
	rootIno := st.Ino

	require.NoError(t, meta.SaveFile(&domain.File{Ino: rootIno, Type: domain.TypeDirectory, Permissions: 0o777, OwnerUID: domain.AdminUID}))
	require.NoError(t, meta.SavePath(&domain.Path{CanonicalPath: "/", Ino: rootIno}))

	return New(meta, backing, codec), meta, backing, codec
}

func rootIno(t *testing.T, meta *metastore.Store) uint64 {
	t.Helper()
	p, err := meta.FindPath("/")
	require.NoError(t, err)
	return p.Ino
}

func adminUser() *domain.User { return &domain.User{UID: domain.AdminUID} }

func member(uid uint32, gid *uint32) *domain.User { return &domain.User{UID: uid, GroupGID: gid} }

func TestMkdirAndCreateFlow(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	gid := uint32(6000)
	user := member(5001, &gid)

	docs, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	assert.Equal(t, 1, docs.Type)
	assert.EqualValues(t, 0o755, docs.Permissions)
	assert.Equal(t, user.UID, docs.Owner)

	docsIno, _ := strconv.ParseUint(docs.Ino, 10, 64)

	hello, err := ops.Create(docsIno, "hello.txt", user)
	require.NoError(t, err)
	assert.Equal(t, 0, hello.Type)
	assert.EqualValues(t, 0o644, hello.Permissions)
}

func TestMkdirConflict(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()

	_, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	_, err = ops.Mkdir(root, "docs", user)
	require.Error(t, err)
	rerr, ok := rfserr.As(err)
	require.True(t, ok)
	assert.Equal(t, rfserr.EEXIST, rerr.Code)
}

func TestUnlinkOnDirectoryIsEISDIR(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	_, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)

	err = ops.Unlink(root, "docs", user)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.EISDIR, rerr.Code)
}

func TestRmdirOnRegularFileIsENOTDIR(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	_, err := ops.Create(root, "f.txt", user)
	require.NoError(t, err)

	err = ops.Rmdir(root, "f.txt", user)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.ENOTDIR, rerr.Code)
}

func TestRmdirNonEmptyIsENOTEMPTY(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	docs, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	docsIno, _ := strconv.ParseUint(docs.Ino, 10, 64)
	_, err = ops.Create(docsIno, "f.txt", user)
	require.NoError(t, err)

	err = ops.Rmdir(root, "docs", user)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.ENOTEMPTY, rerr.Code)
}

func TestHardlinkAndUnlinkKeepsFile(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	docs, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	docsIno, _ := strconv.ParseUint(docs.Ino, 10, 64)

	hello, err := ops.Create(docsIno, "hello.txt", user)
	require.NoError(t, err)
	helloIno, _ := strconv.ParseUint(hello.Ino, 10, 64)

	_, err = ops.Hardlink(helloIno, docsIno, "alias", user)
	require.NoError(t, err)

	require.NoError(t, ops.Unlink(docsIno, "hello.txt", user))

	count, err := meta.CountPathsOfFile(helloIno)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "file row should survive with its remaining path")
}

func TestHardlinkOfDirectoryIsEISDIR(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	docs, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	docsIno, _ := strconv.ParseUint(docs.Ino, 10, 64)

	_, err = ops.Hardlink(docsIno, root, "alias", user)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.EISDIR, rerr.Code)
}

func TestRenameAcrossDirectories(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	docs, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	docsIno, _ := strconv.ParseUint(docs.Ino, 10, 64)
	archive, err := ops.Mkdir(root, "archive", user)
	require.NoError(t, err)
	archiveIno, _ := strconv.ParseUint(archive.Ino, 10, 64)

	hello, err := ops.Create(docsIno, "hello.txt", user)
	require.NoError(t, err)
	helloIno, _ := strconv.ParseUint(hello.Ino, 10, 64)
	_, err = ops.Hardlink(helloIno, docsIno, "alias", user)
	require.NoError(t, err)

	renamed, err := ops.Rename(docsIno, "alias", archiveIno, "saved.txt", user)
	require.NoError(t, err)
	assert.Equal(t, "/archive/saved.txt", renamed.Path)

	_, err = meta.FindPath("/docs/alias")
	require.Error(t, err)
}

func TestRenameRootRefused(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	docs, err := ops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	docsIno, _ := strconv.ParseUint(docs.Ino, 10, 64)

	_, err = ops.Rename(root, "", docsIno, "whatever", user)
	require.Error(t, err)
}

func TestSymlinkAndReadlink(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	user := adminUser()
	archive, err := ops.Mkdir(root, "archive", user)
	require.NoError(t, err)
	archiveIno, _ := strconv.ParseUint(archive.Ino, 10, 64)
	_, err = ops.Create(archiveIno, "saved.txt", user)
	require.NoError(t, err)

	link, err := ops.Symlink("/archive/saved.txt", root, "link", user)
	require.NoError(t, err)
	assert.Equal(t, 2, link.Type)
	linkIno, _ := strconv.ParseUint(link.Ino, 10, 64)

	target, err := ops.Readlink(linkIno)
	require.NoError(t, err)
	assert.Equal(t, "/archive/saved.txt", target)
}

func TestCreateRequiresWritePermission(t *testing.T) {
	ops, meta, _, _ := newTestOps(t)
	root := rootIno(t, meta)
	admin := adminUser()
	docs, err := ops.Mkdir(root, "docs", admin)
	require.NoError(t, err)
	docsIno, _ := strconv.ParseUint(docs.Ino, 10, 64)
	require.NoError(t, meta.UpdatePermissions(docsIno, 0o555))

	stranger := member(5099, nil)
	_, err = ops.Create(docsIno, "nope.txt", stranger)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.EACCES, rerr.Code)
}
