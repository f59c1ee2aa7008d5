package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiqidi/overlay-sched/sched"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest_LinksEntriesInOrder(t *testing.T) {
	// GIVEN a queue directory with two seeds and a manifest
	dir := t.TempDir()
	writeFile(t, dir, "id-000", "USER a\r\nPASS b\r\n")
	writeFile(t, dir, "id-001", "QUIT\r\n")
	path := writeFile(t, dir, "queue.json", `{
  "entries": [
    {"file": "id-000", "regions": [
      {"start": 0, "end": 7, "states": [0, 331]},
      {"start": 8, "end": 15, "states": [0, 331, 230]}
    ]},
    {"file": "id-001", "len": 4}
  ]
}`)

	// WHEN loaded
	q, err := LoadManifest(path)
	require.NoError(t, err)

	// THEN entries are linked in manifest order with paths resolved
	require.Equal(t, 2, q.Len())
	assert.Equal(t, dir, q.Dir)
	assert.Same(t, q.Entries[0], q.Head)
	assert.Same(t, q.Entries[1], q.Head.Next)
	assert.Nil(t, q.Entries[1].Next)

	first := q.Entries[0]
	assert.Equal(t, 0, first.ID)
	assert.Equal(t, filepath.Join(dir, "id-000"), first.Path)
	assert.Equal(t, 16, first.Len, "len defaults to the file size")
	require.Len(t, first.Regions, 2)
	assert.Equal(t, []uint32{0, 331, 230}, first.Regions[1].States)

	second := q.Entries[1]
	assert.Equal(t, 4, second.Len, "recorded len wins over file size")
	assert.Nil(t, second.Regions)
}

func TestQueue_RelPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "id-000", "x")
	outside := writeFile(t, t.TempDir(), "other", "y")
	data := []byte(`{"entries": [{"file": "id-000"}, {"file": "` + filepath.ToSlash(outside) + `"}]}`)

	q, err := ParseManifest(data, dir)
	require.NoError(t, err)

	assert.Equal(t, "id-000", q.RelPath(q.Entries[0]))
	assert.Equal(t, outside, q.RelPath(q.Entries[1]), "paths outside Dir stay absolute")
}

func TestLoadManifest_FeedsScheduler(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", "hello")
	path := writeFile(t, dir, "queue.json",
		`{"entries": [{"file": "a", "regions": [{"start": 0, "end": 4, "states": [1, 2]}]}]}`)

	q, err := LoadManifest(path)
	require.NoError(t, err)

	s := sched.NewScheduler(sched.DefaultConfig())
	feat := s.GetOrBuildFeatures(q.Head)
	assert.Equal(t, 1, feat.MessageCount)
	assert.Greater(t, feat.Histograms[0]['l'], 0.0)
	assert.Same(t, q.Head, s.PickFromWindow(q.Head))
}

func TestParseManifest_AbsolutePathKept(t *testing.T) {
	abs := writeFile(t, t.TempDir(), "seed", "xyz")
	data := []byte(`{"entries": [{"file": "` + filepath.ToSlash(abs) + `"}]}`)

	q, err := ParseManifest(data, "/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(abs), filepath.ToSlash(q.Head.Path))
	assert.Equal(t, 3, q.Head.Len)
}

func TestParseManifest_MissingFileIsEmpty(t *testing.T) {
	q, err := ParseManifest([]byte(`{"entries": [{"file": "gone"}]}`), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, q.Head.Len)
}

func TestParseManifest_EmptyQueue(t *testing.T) {
	q, err := ParseManifest([]byte(`{"entries": []}`), ".")
	require.NoError(t, err)
	assert.Zero(t, q.Len())
	assert.Nil(t, q.Head)
}

func TestParseManifest_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{entries`},
		{"missing entries", `{}`},
		{"missing file", `{"entries": [{"len": 3}]}`},
		{"empty file name", `{"entries": [{"file": ""}]}`},
		{"negative len", `{"entries": [{"file": "a", "len": -1}]}`},
		{"unknown entry key", `{"entries": [{"file": "a", "size": 3}]}`},
		{"region without end", `{"entries": [{"file": "a", "regions": [{"start": 0}]}]}`},
		{"negative state", `{"entries": [{"file": "a", "regions": [{"start": 0, "end": 1, "states": [-2]}]}]}`},
		{"fractional start", `{"entries": [{"file": "a", "regions": [{"start": 0.5, "end": 1}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data), t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestLoadManifest_MissingManifest(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "queue.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
