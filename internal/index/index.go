// Package index maintains the shared catalogue index, a JSON document
// listing every sound in the library:
//
//	{
//	  "version": 1,
//	  "sounds": [ { "filename": ..., "metadata": ..., "xc_id": ..., ... } ]
//	}
//
// Other tools write to the same file, so entries are carried as raw JSON
// and only xc_id is inspected. The merge is a whole-file read-modify-write
// with no locking: one writer at a time.
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/franz/xc-fetch/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
)

// Version is the only index layout this package reads and writes
const Version = 1

var (
	// ErrCorruptIndex indicates an existing index that cannot be used as-is
	ErrCorruptIndex = fmt.Errorf("index %w", util.ErrCorrupt)

	// ErrRead indicates an existing index file could not be read
	ErrRead = errors.New("cannot read index")

	// ErrWrite indicates the index could not be written
	ErrWrite = errors.New("cannot write index")
)

// Outcome tells whether Merge changed the index
type Outcome int

const (
	// Inserted means the entry was appended and the file rewritten
	Inserted Outcome = iota
	// AlreadyPresent means an entry with the same xc_id existed; nothing was written
	AlreadyPresent
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already present"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Entry is one row written by this tool
type Entry struct {
	Filename string `json:"filename"`
	Metadata string `json:"metadata"`
	XCID     uint64 `json:"xc_id"`
	EN       string `json:"en"`
	Species  string `json:"species"`
	Source   string `json:"source"`
}

// Index is the decoded index file. Sounds keep their original JSON;
// unknown top-level keys survive a rewrite.
type Index struct {
	Version int
	Sounds  []json.RawMessage
	extra   map[string]json.RawMessage
}

// New returns an empty index
func New() *Index {
	return &Index{Version: Version, Sounds: []json.RawMessage{}}
}

// Parse decodes an index document
func Parse(data []byte) (*Index, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrCorruptIndex)
	}

	idx := &Index{extra: map[string]json.RawMessage{}}

	rawVersion, ok := doc["version"]
	if !ok {
		return nil, fmt.Errorf("%w: missing version", ErrCorruptIndex)
	}
	if err := json.Unmarshal(rawVersion, &idx.Version); err != nil {
		return nil, fmt.Errorf("%w: version: %w", ErrCorruptIndex, err)
	}
	if idx.Version != Version {
		return nil, fmt.Errorf("%w: version %d (%w)", ErrCorruptIndex, idx.Version, util.ErrUnsupported)
	}

	rawSounds, ok := doc["sounds"]
	if !ok {
		return nil, fmt.Errorf("%w: missing sounds", ErrCorruptIndex)
	}
	if err := json.Unmarshal(rawSounds, &idx.Sounds); err != nil || idx.Sounds == nil {
		return nil, fmt.Errorf("%w: sounds is not a list", ErrCorruptIndex)
	}

	for key, value := range doc {
		if key != "version" && key != "sounds" {
			idx.extra[key] = value
		}
	}

	return idx, nil
}

// Marshal encodes the index as indented JSON with a trailing newline.
// Keys come out as version, sounds, then any foreign keys sorted; entry
// order is preserved.
func (idx *Index) Marshal() ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(`{"version":`)
	body.WriteString(strconv.Itoa(idx.Version))

	sounds := idx.Sounds
	if sounds == nil {
		sounds = []json.RawMessage{}
	}
	body.WriteString(`,"sounds":`)
	if err := encodeCompact(&body, sounds); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(idx.extra))
	for key := range idx.extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		body.WriteByte(',')
		if err := encodeCompact(&body, key); err != nil {
			return nil, err
		}
		body.WriteByte(':')
		if err := encodeCompact(&body, idx.extra[key]); err != nil {
			return nil, err
		}
	}
	body.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, body.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func encodeCompact(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// Contains reports whether any sound carries the given xc_id
func (idx *Index) Contains(xcID uint64) bool {
	for _, raw := range idx.Sounds {
		if id, ok := soundXCID(raw); ok && id == xcID {
			return true
		}
	}
	return false
}

// Append adds an entry at the end
func (idx *Index) Append(entry Entry) error {
	var buf bytes.Buffer
	if err := encodeCompact(&buf, entry); err != nil {
		return err
	}
	idx.Sounds = append(idx.Sounds, json.RawMessage(buf.Bytes()))
	return nil
}

// Entries decodes the sounds in order. Sounds written by other tools
// decode with whatever fields they share with Entry.
func (idx *Index) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(idx.Sounds))
	for i, raw := range idx.Sounds {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: sound %d: %w", ErrCorruptIndex, i, err)
		}
		id, _ := soundXCID(raw)
		entries = append(entries, Entry{
			Filename: cast.ToString(fields["filename"]),
			Metadata: cast.ToString(fields["metadata"]),
			XCID:     id,
			EN:       cast.ToString(fields["en"]),
			Species:  cast.ToString(fields["species"]),
			Source:   cast.ToString(fields["source"]),
		})
	}
	return entries, nil
}

// soundXCID extracts xc_id from a sound, accepting numbers and strings
func soundXCID(raw json.RawMessage) (uint64, bool) {
	var sound struct {
		XCID json.RawMessage `json:"xc_id"`
	}
	if err := json.Unmarshal(raw, &sound); err != nil || len(sound.XCID) == 0 {
		return 0, false
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(sound.XCID))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || v == nil {
		return 0, false
	}

	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(cast.ToString(v))), "XC")
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Merger applies entries to index files on a filesystem
type Merger struct {
	fs afero.Fs
}

// NewMerger creates a merger. A nil fs means the OS filesystem.
func NewMerger(fs afero.Fs) *Merger {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Merger{fs: fs}
}

// Load reads the index at path. A missing file yields an empty index.
func (m *Merger) Load(path string) (*Index, error) {
	data, err := afero.ReadFile(m.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}

	idx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

// Merge appends entry unless a sound with the same xc_id exists.
// A corrupt index is reported, never repaired.
func (m *Merger) Merge(path string, entry Entry) (Outcome, error) {
	idx, err := m.Load(path)
	if err != nil {
		return 0, err
	}

	if idx.Contains(entry.XCID) {
		util.DebugLog("Index %s already lists XC%d", path, entry.XCID)
		return AlreadyPresent, nil
	}

	if err := idx.Append(entry); err != nil {
		return 0, err
	}

	data, err := idx.Marshal()
	if err != nil {
		return 0, err
	}

	if err := m.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWrite, filepath.Dir(path), err)
	}
	if err := util.WriteFileAtomic(m.fs, path, data, 0644); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}

	return Inserted, nil
}
