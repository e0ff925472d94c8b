package asset_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/document"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/version"
)

func parse(t *testing.T, src string) *document.Node {
	t.Helper()
	doc, err := document.ParseBytes([]byte(src))
	require.NoError(t, err)
	return doc.Root()
}

func TestSerializedVersion_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  version.Version
		found bool
	}{
		{"mapping", "Id: a\nSerializedVersion: {core: 1.2.3}\n", version.New(1, 2, 3), true},
		{"other dependency", "Id: a\nSerializedVersion: {other: 1.2.3}\n", version.Zero, false},
		{"legacy", "Id: a\nSerializedVersion: 7\n", version.Legacy(7), true},
		{"missing", "Id: a\n", version.Zero, false},
		{"null", "Id: a\nSerializedVersion:\n", version.Zero, false},
		{"tilde", "Id: a\nSerializedVersion: ~\n", version.Zero, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := asset.SerializedVersion(parse(t, tt.src), "core")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestSerializedVersion_Malformed(t *testing.T) {
	for _, src := range []string{
		"SerializedVersion: {core: nope}\n",
		"SerializedVersion: abc\n",
		"SerializedVersion: +7\n",
		"SerializedVersion: [1]\n",
		"SerializedVersion: {core: [1]}\n",
	} {
		_, _, err := asset.SerializedVersion(parse(t, src), "core")
		assert.ErrorIs(t, err, models.ErrParse, src)
	}
}

func TestSetSerializedVersion_InsertsAfterID(t *testing.T) {
	root := parse(t, "Id: a\nBar: b\n")

	asset.SetSerializedVersion(root, "core", version.New(2, 0, 0))
	assert.Equal(t, []string{"Id", "SerializedVersion", "Bar"}, root.Keys())

	asset.SetSerializedVersion(root, "other", version.New(1, 0, 0))
	assert.Equal(t, []string{"core", "other"}, root.Child("SerializedVersion").Keys())

	got, _, err := asset.SerializedVersion(root, "core")
	require.NoError(t, err)
	assert.Equal(t, version.New(2, 0, 0), got)
}

func TestBaseHelpers(t *testing.T) {
	root := parse(t, `Id: a
~Base:
    Asset: {Id: b}
~BaseParts:
    -   Asset: {Id: c}
    -   Other: {}
    -   Asset: {Id: d}
`)
	require.True(t, asset.HasBase(root))
	require.NotNil(t, asset.BaseAsset(root))
	assert.Len(t, asset.BasePartAssets(root), 2)

	plain := parse(t, "Id: a\n~BaseParts: []\n")
	assert.False(t, asset.HasBase(plain))
	assert.Nil(t, asset.BaseAsset(plain))
}

func TestFile_OverrideSupersedesDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thing.sdfoo")
	require.NoError(t, os.WriteFile(path, []byte("Id: a\nBar: disk\n"), 0o600))

	f := asset.NewFile(path)
	assert.Equal(t, ".sdfoo", f.Ext())
	assert.False(t, f.Modified())

	ed, err := f.Edit()
	require.NoError(t, err)
	ed.Root().SetScalar("Bar", "memory")

	// Uncommitted edits are invisible.
	data, err := f.Content()
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk")

	require.NoError(t, ed.Commit())
	assert.True(t, f.Modified())

	r, err := f.Open()
	require.NoError(t, err)
	data, err = io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Contains(t, string(data), "Bar: memory")

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "disk")

	require.NoError(t, f.Save())
	assert.False(t, f.Modified())

	onDisk, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(onDisk), "Bar: memory")
}

func TestFile_MissingFile(t *testing.T) {
	f := asset.NewFile(filepath.Join(t.TempDir(), "missing.sdfoo"))

	_, err := f.Content()
	require.Error(t, err)

	_, err = f.Edit()
	require.Error(t, err)
}

func TestSerializers(t *testing.T) {
	s := asset.NewSerializers()
	s.Register("sdfoo", asset.SerializerDocument)
	s.Register(".PNG", asset.SerializerRaw)

	assert.True(t, s.IsDocument(".SDFOO"))
	assert.False(t, s.IsDocument(".png"))
	assert.Equal(t, asset.SerializerRaw, s.Kind("png"))
	assert.Equal(t, asset.SerializerUnknown, s.Kind(".txt"))
	assert.Equal(t, []string{".sdfoo"}, s.Extensions(asset.SerializerDocument))
}

func TestTypes_Resolve(t *testing.T) {
	types := asset.NewTypes()
	types.Register("Foo", "!FooAsset", "Legacy.Foo,Legacy")

	for _, tag := range []string{"!Foo", "Foo", "!FooAsset", "!Legacy.Foo,Legacy"} {
		got, ok := types.ResolveType(tag)
		assert.True(t, ok, tag)
		assert.Equal(t, "Foo", got, tag)
	}

	_, ok := types.ResolveType("!Bar")
	assert.False(t, ok)
}
