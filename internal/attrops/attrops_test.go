package attrops

import (
	"strconv"
	"testing"

	"github.com/openrfs/rfsd/internal/backingstore"
	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/fileops"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/pathcodec"
	"github.com/openrfs/rfsd/internal/rfserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHarness(t *testing.T) (*Ops, *fileops.Ops, *metastore.Store, uint64) {
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

	return New(meta, backing, codec), fileops.New(meta, backing, codec), meta, rootIno
}

func ino(t *testing.T, s string) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(s, 10, 64)
	require.NoError(t, err)
	return n
}

func TestLookupSucceeds(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}

	_, err := fops.Mkdir(root, "docs", user)
	require.NoError(t, err)

	desc, err := attr.Lookup(root, "docs", user)
	require.NoError(t, err)
	assert.Equal(t, "docs", desc.Name)
	assert.Equal(t, 1, desc.Type)
}

func TestLookupMissingIsENOENT(t *testing.T) {
	attr, _, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}

	_, err := attr.Lookup(root, "nope", user)
	require.Error(t, err)
	rerr, ok := rfserr.As(err)
	require.True(t, ok)
	assert.Equal(t, rfserr.ENOENT, rerr.Code)
}

func TestReaddirListsEntries(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}
	_, err := fops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	_, err = fops.Create(root, "f.txt", user)
	require.NoError(t, err)

	entries, err := attr.Readdir(root, user)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"docs", "f.txt"}, names)
}

func TestReaddirFiltersUnreadableChildren(t *testing.T) {
	attr, fops, meta, root := newTestHarness(t)
	owner := &domain.User{UID: 5001}
	stranger := &domain.User{UID: 5099}

	secret, err := fops.Create(root, "secret.txt", owner)
	require.NoError(t, err)
	require.NoError(t, meta.UpdatePermissions(ino(t, secret.Ino), 0o600))

	entries, err := attr.Readdir(root, stranger)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "secret.txt", e.Name)
	}
}

func TestGetattrConditionalNotModified(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", user)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	result, err := attr.Getattr(fIno, user, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Descriptor)

	future := result.Descriptor.Mtime/1000 + 3600
	result2, err := attr.Getattr(fIno, user, &future)
	require.NoError(t, err)
	assert.True(t, result2.NotModified)
}

func TestSetattrPermissionRoundTrip(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", user)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	perm := uint16(0o600)
	desc, err := attr.Setattr(fIno, SetattrRequest{Perm: &perm}, user)
	require.NoError(t, err)
	assert.EqualValues(t, 0o600, desc.Permissions)

	result, err := attr.Getattr(fIno, user, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0o600, result.Descriptor.Permissions)
}

func TestSetattrPermOutOfRange(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", user)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	bad := uint16(0o1000)
	_, err = attr.Setattr(fIno, SetattrRequest{Perm: &bad}, user)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.EINVAL, rerr.Code)
}

func TestSetattrUnknownUIDReassignsToCaller(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	owner := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", owner)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	unknown := uint32(9999)
	desc, err := attr.Setattr(fIno, SetattrRequest{UID: &unknown}, owner)
	require.NoError(t, err)
	assert.Equal(t, owner.UID, desc.Owner)
}

func TestSetattrGIDChangesGroupIndependentlyOfUID(t *testing.T) {
	attr, fops, meta, root := newTestHarness(t)
	owner := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", owner)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	require.NoError(t, meta.CreateGroup(77))

	gid := uint32(77)
	desc, err := attr.Setattr(fIno, SetattrRequest{GID: &gid}, owner)
	require.NoError(t, err)
	assert.Equal(t, owner.UID, desc.Owner)
	require.NotNil(t, desc.Group)
	assert.EqualValues(t, 77, *desc.Group)
}

func TestSetattrUnknownGIDIsEINVAL(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	owner := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", owner)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	unknown := uint32(9999)
	_, err = attr.Setattr(fIno, SetattrRequest{GID: &unknown}, owner)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.EINVAL, rerr.Code)
}

func TestSetattrSizeTruncatesFile(t *testing.T) {
	attr, fops, meta, root := newTestHarness(t)
	user := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", user)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	size := int64(10)
	desc, err := attr.Setattr(fIno, SetattrRequest{Size: &size}, user)
	require.NoError(t, err)
	assert.Equal(t, "10", desc.Size)
	_ = meta
}

func TestSetattrSizeOnDirectoryIsEISDIR(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}
	d, err := fops.Mkdir(root, "docs", user)
	require.NoError(t, err)
	dIno := ino(t, d.Ino)

	size := int64(10)
	_, err = attr.Setattr(dIno, SetattrRequest{Size: &size}, user)
	require.Error(t, err)
	rerr, _ := rfserr.As(err)
	assert.Equal(t, rfserr.EISDIR, rerr.Code)
}

func TestIdempotentSetattr(t *testing.T) {
	attr, fops, _, root := newTestHarness(t)
	user := &domain.User{UID: 5001}
	f, err := fops.Create(root, "f.txt", user)
	require.NoError(t, err)
	fIno := ino(t, f.Ino)

	perm := uint16(0o640)
	d1, err := attr.Setattr(fIno, SetattrRequest{Perm: &perm}, user)
	require.NoError(t, err)
	d2, err := attr.Setattr(fIno, SetattrRequest{Perm: &perm}, user)
	require.NoError(t, err)
	assert.Equal(t, d1.Permissions, d2.Permissions)
	assert.Equal(t, d1.Owner, d2.Owner)
}
