package migrate_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/document"
	"github.com/persistorai/assetmig/internal/migrate"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/upgrade"
	"github.com/persistorai/assetmig/internal/version"
)

const dep = "core"

func v(major int) version.Version { return version.New(major, 0, 0) }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newMigrator(reg *upgrade.Registry) *migrate.Migrator {
	serializers := asset.NewSerializers()
	serializers.Register(".foo", asset.SerializerDocument)
	serializers.Register(".bin", asset.SerializerRaw)

	types := asset.NewTypes()
	types.Register("Foo", "!Foo")

	return migrate.New(reg, types, serializers, quietLogger())
}

type step struct {
	from, to version.Version
	hint     models.OverrideHint
}

// recorder returns an implementation that logs every hook call into calls.
func recorder(id string, calls *[]step) upgrade.Implementation {
	return upgrade.Implementation{
		ID: id,
		New: func() upgrade.Upgrader {
			return upgrade.Base{Asset: upgrade.AssetUpgraderFunc(func(_ *upgrade.MigrationContext, current, target version.Version, _ *document.Node, _ *asset.File, hint models.OverrideHint) error {
				*calls = append(*calls, step{from: current, to: target, hint: hint})
				return nil
			})}
		},
	}
}

// chainRegistry registers Foo at 3.0.0 with one recording step per major version.
func chainRegistry(t *testing.T, calls *[]step) *upgrade.Registry {
	t.Helper()

	reg := upgrade.NewRegistry()
	require.NoError(t, reg.RegisterAssetVersion("Foo", dep, v(3), v(0),
		upgrade.Step{Start: v(0), Target: v(1), Upgrader: recorder("s1", calls)},
		upgrade.Step{Start: v(1), Target: v(2), Upgrader: recorder("s2", calls)},
		upgrade.Step{Start: v(2), Target: v(3), Upgrader: recorder("s3", calls)},
	))
	return reg
}

func assetAt(ver string) string {
	return fmt.Sprintf("!Foo\nId: %s\nSerializedVersion: {core: %s}\nBar: old\n", uuid.NewString(), ver)
}

func reparse(t *testing.T, f *asset.File) *document.Node {
	t.Helper()
	data, err := f.Content()
	require.NoError(t, err)
	doc, err := document.ParseBytes(data)
	require.NoError(t, err)
	return doc.Root()
}

func versionOf(t *testing.T, node *document.Node) version.Version {
	t.Helper()
	got, found, err := asset.SerializedVersion(node, dep)
	require.NoError(t, err)
	require.True(t, found)
	return got
}

func TestMigrate_UpToDateLeavesBytesAlone(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))

	content := []byte(assetAt("3.0.0") + "# trailing comment\n")
	f := asset.NewMemoryFile("a.foo", content)

	migrated, err := m.MigrateIfNeeded(nil, f, dep)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.False(t, f.Modified())
	assert.Empty(t, calls)

	after, err := f.Content()
	require.NoError(t, err)
	assert.Equal(t, content, after)
}

func TestMigrate_ChainRunsEachStepInOrder(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))

	f := asset.NewMemoryFile("a.foo", []byte(assetAt("0.0.0")))

	migrated, err := m.MigrateIfNeeded(nil, f, dep)
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.True(t, f.Modified())

	assert.Equal(t, []step{
		{from: v(0), to: v(1), hint: models.HintUnknown},
		{from: v(1), to: v(2), hint: models.HintUnknown},
		{from: v(2), to: v(3), hint: models.HintUnknown},
	}, calls)
	assert.Equal(t, v(3), versionOf(t, reparse(t, f)))
}

func TestMigrate_FutureVersionIsRejected(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))

	f := asset.NewMemoryFile("a.foo", []byte(assetAt("5.0.0")))

	migrated, err := m.MigrateIfNeeded(nil, f, dep)
	require.ErrorIs(t, err, models.ErrUnsupportedFutureVersion)
	assert.False(t, migrated)
	assert.False(t, f.Modified())
	assert.Empty(t, calls)
}

func TestMigrate_CeilingStopsEarly(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))

	f := asset.NewMemoryFile("a.foo", []byte(assetAt("0.0.0")))

	migrated, err := m.MigrateUntil(nil, f, dep, v(1))
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Len(t, calls, 1)
	assert.Equal(t, v(1), versionOf(t, reparse(t, f)))

	// A second pass with the same ceiling has nothing left to apply.
	migrated, err = m.MigrateUntil(nil, f, dep, v(1))
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Len(t, calls, 1)
}

func TestMigrate_BaseCopiesFollowRoot(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))

	f := asset.NewMemoryFile("derived.foo", []byte(`!Foo
Id: 1c7e7a5b-5b6f-4a36-9a56-2f7b0d7c1e11
SerializedVersion: {core: 2.0.0}
~Base:
    Location: base.foo
    Asset:
        Id: 52d8c1a4-3bb5-4bc9-8a69-6f1b57f2f0b2
        SerializedVersion: {core: 2.0.0}
        Bar: base
Bar: derived
`))

	migrated, err := m.MigrateIfNeeded(nil, f, dep)
	require.NoError(t, err)
	assert.True(t, migrated)

	assert.Equal(t, []step{
		{from: v(2), to: v(3), hint: models.HintDerived},
		{from: v(2), to: v(3), hint: models.HintBase},
	}, calls)

	root := reparse(t, f)
	assert.Equal(t, v(3), versionOf(t, root))
	assert.Equal(t, v(3), versionOf(t, asset.BaseAsset(root)))
}

func TestMigrate_LegacyScalarIsNormalized(t *testing.T) {
	reg := upgrade.NewRegistry()
	require.NoError(t, reg.RegisterAssetVersion("Foo", dep, version.Legacy(2), version.Zero))
	m := newMigrator(reg)

	f := asset.NewMemoryFile("a.foo", []byte(`!Foo
Id: 9a0b3c6e-0d25-4ad4-8d67-5b6f0a1d4c90
SerializedVersion: 2
~Base:
    Asset:
        Id: 0c3d8e1f-6a7b-4c59-9d2e-3f4a5b6c7d8e
        SerializedVersion: 1
Bar: 1
`))

	migrated, err := m.MigrateIfNeeded(nil, f, dep)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.True(t, f.Modified())

	root := reparse(t, f)
	assert.Equal(t, []string{"Id", "SerializedVersion", "~Base", "Bar"}, root.Keys())
	assert.True(t, root.Child(asset.KeySerializedVersion).IsMapping())
	assert.Equal(t, version.Legacy(2), versionOf(t, root))

	base := asset.BaseAsset(root)
	require.NotNil(t, base)
	assert.Equal(t, []string{"Id", "SerializedVersion"}, base.Keys())
	assert.Equal(t, version.Legacy(2), versionOf(t, base))

	data, err := f.Content()
	require.NoError(t, err)
	assert.Contains(t, string(data), "SerializedVersion: {core: 0.0.2}")
}

func TestMigrate_EndToEnd(t *testing.T) {
	setBar := upgrade.Implementation{
		ID: "foo/set-bar",
		New: func() upgrade.Upgrader {
			return upgrade.Base{Asset: upgrade.AssetUpgraderFunc(func(_ *upgrade.MigrationContext, _, _ version.Version, node *document.Node, _ *asset.File, _ models.OverrideHint) error {
				node.SetScalar("Bar", "migrated")
				return nil
			})}
		},
	}

	reg := upgrade.NewRegistry()
	require.NoError(t, reg.RegisterAssetVersion("Foo", dep, v(2), version.Zero,
		upgrade.Step{Start: version.Zero, Target: v(2), Upgrader: setBar},
	))
	m := newMigrator(reg)

	id := uuid.NewString()
	f := asset.NewMemoryFile("a.foo", []byte("!Foo\nId: "+id+"\nSerializedVersion: {core: 0.0.0}\nBar: old\n"))

	migrated, err := m.MigrateIfNeeded(nil, f, dep)
	require.NoError(t, err)
	assert.True(t, migrated)

	data, err := f.Content()
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "!Foo\n"), text)
	assert.Contains(t, text, "Id: "+id)
	assert.Contains(t, text, "SerializedVersion: {core: 2.0.0}")
	assert.Contains(t, text, "Bar: migrated")
}

func TestMigrate_ValuesContinuingAtColumnZero(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantSteps int
	}{
		{"flow mapping", "!Foo\nId: x\nSerializedVersion: {other: 2.0.0,\ncore: 1.0.0}\nBar: 1\n", 2},
		{"quoted scalar", "!Foo\nNote: \"see:\nhttp://x\"\nBar: 1\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []step
			m := newMigrator(chainRegistry(t, &calls))
			f := asset.NewMemoryFile("a.foo", []byte(tt.content))

			migrated, err := m.MigrateIfNeeded(nil, f, dep)
			require.NoError(t, err)
			assert.True(t, migrated)
			assert.Len(t, calls, tt.wantSteps)
			assert.Equal(t, v(3), versionOf(t, reparse(t, f)))
		})
	}
}

func TestMigrate_NullVersionStartsFromZero(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))
	f := asset.NewMemoryFile("a.foo", []byte("!Foo\nId: x\nSerializedVersion: ~\nBar: old\n"))

	migrated, err := m.MigrateIfNeeded(nil, f, dep)
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Len(t, calls, 3)

	root := reparse(t, f)
	assert.Equal(t, v(3), versionOf(t, root))
	assert.Equal(t, []string{"Id", "SerializedVersion", "Bar"}, root.Keys())
}

func TestMigrate_RawAssetsAreIgnored(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))

	for _, name := range []string{"blob.bin", "notes.txt"} {
		f := asset.NewMemoryFile(name, []byte("\x00\x01 not yaml {"))
		migrated, err := m.MigrateIfNeeded(nil, f, dep)
		require.NoError(t, err, name)
		assert.False(t, migrated, name)
	}
}

func TestMigrate_Failures(t *testing.T) {
	broken := upgrade.Implementation{
		ID:  "broken",
		New: func() upgrade.Upgrader { return skipUpgrader{} },
	}

	reg := upgrade.NewRegistry()
	require.NoError(t, reg.RegisterAssetVersion("Foo", dep, v(1), v(0),
		upgrade.Step{Start: v(0), Target: v(1), Upgrader: broken},
	))
	require.NoError(t, reg.RegisterAssetVersion("Foo", "extras", v(2), v(0)))
	require.NoError(t, reg.RegisterAssetVersion("Foo", "partial", v(2), v(1),
		upgrade.Step{Start: v(1), Target: v(2), Upgrader: upgrade.Empty},
	))
	m := newMigrator(reg)

	tests := []struct {
		name       string
		content    string
		dependency string
		want       error
	}{
		{"unknown tag", "!Nope\nId: x\n", dep, models.ErrUnknownAssetType},
		{"missing tag", "Id: x\n", dep, models.ErrUnknownAssetType},
		{"malformed header", "!Foo\nId: [unterminated\n", dep, models.ErrParse},
		{"malformed version", "!Foo\nId: x\nSerializedVersion: {core: 1.0}\n", dep, models.ErrParse},
		{"no upgraders", "!Foo\nId: x\n", "extras", models.ErrNoUpgraderPath},
		{"uncovered version", "!Foo\nId: x\n", "partial", models.ErrUpgraderNotFound},
		{"upgrader skips version", "!Foo\nId: x\n", dep, models.ErrIncompleteMigration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := asset.NewMemoryFile("a.foo", []byte(tt.content))
			migrated, err := m.MigrateIfNeeded(nil, f, tt.dependency)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, migrated)
			assert.False(t, f.Modified())
		})
	}
}

// skipUpgrader claims success without recording the target version.
type skipUpgrader struct{}

func (skipUpgrader) Upgrade(*upgrade.MigrationContext, string, version.Version, version.Version, *document.Node, *asset.File) error {
	return nil
}

func TestReadHeader(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    migrate.Header
	}{
		{
			name:    "current form",
			content: "!Foo\nId: x\nSerializedVersion: {other: 9.9.9, core: 1.2.3}\nBar: 1\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x", Version: version.New(1, 2, 3)},
		},
		{
			name:    "block mapping",
			content: "!Foo\nId: x\nSerializedVersion:\n    other: {nested: 1}\n    core: 0.4.0\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x", Version: version.New(0, 4, 0)},
		},
		{
			name:    "legacy form",
			content: "!Foo\nId: x\nSerializedVersion: 7\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x", Version: version.Legacy(7), Legacy: true},
		},
		{
			name:    "dependency absent",
			content: "!Foo\nId: x\nSerializedVersion: {other: 1.0.0}\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x"},
		},
		{
			name:    "null version",
			content: "!Foo\nId: x\nSerializedVersion: ~\nBar: 1\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x"},
		},
		{
			name:    "empty version",
			content: "!Foo\nId: x\nSerializedVersion:\nBar: 1\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x"},
		},
		{
			name:    "no version field",
			content: "!Foo\nId: x\nBar: 1\nSerializedVersion: {core: 1.0.0}\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x"},
		},
		{
			name:    "stops before malformed tail",
			content: "!Foo\nId: x\nSerializedVersion: {core: 1.0.0}\nBar: [unterminated\n  : : :\n",
			want:    migrate.Header{Tag: "!Foo", ID: "x", Version: v(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migrate.ReadHeader(strings.NewReader(tt.content), dep)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInspect(t *testing.T) {
	var calls []step
	m := newMigrator(chainRegistry(t, &calls))

	f := asset.NewMemoryFile("a.foo", []byte("!Foo\nId: x\nSerializedVersion: 1\n"))

	in, err := m.Inspect(f, dep)
	require.NoError(t, err)
	assert.Equal(t, "Foo", in.Type)
	assert.Equal(t, "x", in.ID)
	assert.Equal(t, version.Legacy(1), in.Version)
	assert.Equal(t, v(3), in.Expected)
	assert.True(t, in.NeedsMigration())
	assert.False(t, f.Modified())

	raw, err := m.Inspect(asset.NewMemoryFile("blob.bin", nil), dep)
	require.NoError(t, err)
	assert.False(t, raw.NeedsMigration())
}
