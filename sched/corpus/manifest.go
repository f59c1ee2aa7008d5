// Package corpus loads an on-disk fuzzing queue into linked sched.TestCase
// entries. A queue is described by a JSON manifest listing each test case
// file with its message regions and recorded state sequences, as produced by
// the host fuzzer's state-tracking engine. Manifests are validated against an
// embedded JSON schema before use.
package corpus

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"

	"github.com/baiqidi/overlay-sched/sched"
)

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

const manifestSchemaURL = "https://overlay-sched.local/manifest.schema.json"

// Manifest is the decoded queue description.
type Manifest struct {
	Entries []Entry `json:"entries"`
}

// Entry describes one queued test case. Len is optional; when omitted the
// file size is used.
type Entry struct {
	File    string   `json:"file"`
	Len     *int     `json:"len,omitempty"`
	Regions []Region `json:"regions,omitempty"`
}

// Region mirrors sched.Region in manifest form.
type Region struct {
	Start  int      `json:"start"`
	End    int      `json:"end"`
	States []uint32 `json:"states,omitempty"`
}

// Queue is a loaded corpus: the linked entries in manifest order.
type Queue struct {
	Head    *sched.TestCase
	Entries []*sched.TestCase
	Dir     string // directory relative file names were resolved against
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	return len(q.Entries)
}

// RelPath returns tc's path relative to Dir when it lies below it, and the
// path unchanged otherwise.
func (q *Queue) RelPath(tc *sched.TestCase) string {
	rel, err := filepath.Rel(q.Dir, tc.Path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return tc.Path
	}
	return rel
}

// LoadManifest reads, validates and links the manifest at path. Relative
// file names resolve against the manifest's directory.
func LoadManifest(path string) (*Queue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// ParseManifest validates and links manifest data, resolving relative file
// names against dir.
func ParseManifest(data []byte, dir string) (*Queue, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	q := &Queue{Dir: dir, Entries: make([]*sched.TestCase, 0, len(m.Entries))}
	for i, e := range m.Entries {
		path := e.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		q.Entries = append(q.Entries, sched.NewTestCase(i, path, entryLen(e, path), toRegions(e.Regions)))
	}
	q.Head = sched.Link(q.Entries...)
	logrus.Debugf("corpus: loaded %d entries from %s", len(q.Entries), dir)
	return q, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(manifestSchemaURL, bytes.NewReader(manifestSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(manifestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// entryLen prefers the recorded length; otherwise it stats the file. A
// missing file yields 0, which the scheduler treats as an empty test case.
func entryLen(e Entry, path string) int {
	if e.Len != nil {
		return *e.Len
	}
	info, err := os.Stat(path)
	if err != nil {
		logrus.Warnf("corpus: cannot stat %s: %v; treating as empty", path, err)
		return 0
	}
	return int(info.Size())
}

func toRegions(in []Region) []sched.Region {
	if len(in) == 0 {
		return nil
	}
	out := make([]sched.Region, len(in))
	for i, r := range in {
		out[i] = sched.Region{Start: r.Start, End: r.End, States: r.States}
	}
	return out
}
