package index

import (
	"errors"
	"strings"
	"testing"

	"github.com/franz/xc-fetch/internal/util"
	"github.com/spf13/afero"
)

func wrenEntry() Entry {
	return Entry{
		Filename: "XC928094 - Eurasian Wren - Troglodytes troglodytes.mp3",
		Metadata: "XC928094 - Eurasian Wren - Troglodytes troglodytes.xc.json",
		XCID:     928094,
		EN:       "Eurasian Wren",
		Species:  "Troglodytes troglodytes",
		Source:   "xeno-canto",
	}
}

func TestMergeIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewMerger(fs)
	path := "/lib/sounds/index.json"

	outcome, err := m.Merge(path, wrenEntry())
	if err != nil {
		t.Fatalf("first Merge failed: %v", err)
	}
	if outcome != Inserted {
		t.Errorf("first Merge = %v, expected %v", outcome, Inserted)
	}
	afterFirst, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("index not written: %v", err)
	}

	outcome, err = m.Merge(path, wrenEntry())
	if err != nil {
		t.Fatalf("second Merge failed: %v", err)
	}
	if outcome != AlreadyPresent {
		t.Errorf("second Merge = %v, expected %v", outcome, AlreadyPresent)
	}
	afterSecond, _ := afero.ReadFile(fs, path)

	if string(afterFirst) != string(afterSecond) {
		t.Errorf("second merge modified the index:\n%s\n---\n%s", afterFirst, afterSecond)
	}

	idx, err := m.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(idx.Sounds) != 1 {
		t.Errorf("expected 1 sound, got %d", len(idx.Sounds))
	}
}

func TestMergeCreatesIndexLayout(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/lib/index.json"

	if _, err := NewMerger(fs).Merge(path, wrenEntry()); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	data, _ := afero.ReadFile(fs, path)
	expected := `{
  "version": 1,
  "sounds": [
    {
      "filename": "XC928094 - Eurasian Wren - Troglodytes troglodytes.mp3",
      "metadata": "XC928094 - Eurasian Wren - Troglodytes troglodytes.xc.json",
      "xc_id": 928094,
      "en": "Eurasian Wren",
      "species": "Troglodytes troglodytes",
      "source": "xeno-canto"
    }
  ]
}
`
	if string(data) != expected {
		t.Errorf("unexpected index layout:\n%s", data)
	}
}

func TestMergePreservesOrderAndForeignData(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/lib/index.json"
	existing := `{
  "sounds": [
    {"filename": "rain.ogg", "source": "freesound", "license": "CC0"},
    {"filename": "owl.mp3", "xc_id": "XC12", "source": "xeno-canto"}
  ],
  "version": 1,
  "generator": "manual"
}
`
	afero.WriteFile(fs, path, []byte(existing), 0644)

	m := NewMerger(fs)
	outcome, err := m.Merge(path, wrenEntry())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if outcome != Inserted {
		t.Fatalf("Merge = %v, expected Inserted", outcome)
	}

	data, _ := afero.ReadFile(fs, path)
	out := string(data)
	if !strings.Contains(out, `"license": "CC0"`) {
		t.Errorf("foreign sound fields were dropped:\n%s", out)
	}
	if !strings.Contains(out, `"generator": "manual"`) {
		t.Errorf("foreign top-level keys were dropped:\n%s", out)
	}
	if strings.Index(out, `"version"`) > strings.Index(out, `"sounds"`) {
		t.Errorf("version should be written before sounds:\n%s", out)
	}

	idx, _ := m.Load(path)
	entries, err := idx.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	want := []string{"rain.ogg", "owl.mp3", wrenEntry().Filename}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, name := range want {
		if entries[i].Filename != name {
			t.Errorf("entry %d = %q, expected %q", i, entries[i].Filename, name)
		}
	}
	if entries[1].XCID != 12 {
		t.Errorf("string xc_id should decode, got %d", entries[1].XCID)
	}
}

func TestMergeMatchesStringAndNumericIDs(t *testing.T) {
	tests := []struct {
		name  string
		sound string
	}{
		{"number", `{"xc_id": 928094}`},
		{"string", `{"xc_id": "928094"}`},
		{"prefixed", `{"xc_id": "XC928094"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			afero.WriteFile(fs, "/index.json", []byte(`{"version":1,"sounds":[`+tt.sound+`]}`), 0644)

			outcome, err := NewMerger(fs).Merge("/index.json", wrenEntry())
			if err != nil {
				t.Fatalf("Merge failed: %v", err)
			}
			if outcome != AlreadyPresent {
				t.Errorf("Merge = %v, expected AlreadyPresent", outcome)
			}
		})
	}
}

func TestMergeCorruptIndex(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"not json", "sounds:\n  - wren\n"},
		{"truncated", `{"version": 1, "sounds": [`},
		{"array", `[]`},
		{"null", `null`},
		{"missing version", `{"sounds": []}`},
		{"future version", `{"version": 2, "sounds": []}`},
		{"string version", `{"version": "1", "sounds": []}`},
		{"missing sounds", `{"version": 1}`},
		{"sounds not a list", `{"version": 1, "sounds": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			afero.WriteFile(fs, "/index.json", []byte(tt.content), 0644)

			_, err := NewMerger(fs).Merge("/index.json", wrenEntry())
			if !errors.Is(err, ErrCorruptIndex) {
				t.Fatalf("expected ErrCorruptIndex, got %v", err)
			}
			if !errors.Is(err, util.ErrCorrupt) {
				t.Errorf("ErrCorruptIndex should match util.ErrCorrupt")
			}

			// Never repaired
			data, _ := afero.ReadFile(fs, "/index.json")
			if string(data) != tt.content {
				t.Errorf("corrupt index was modified")
			}
		})
	}
}

func TestMergeWriteFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, err := NewMerger(fs).Merge("/index.json", wrenEntry())
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	idx := New()
	for i, name := range []string{"c", "a", "b"} {
		e := wrenEntry()
		e.XCID = uint64(100 - i)
		e.Filename = name
		if err := idx.Append(e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	data, err := idx.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("index should end with a newline")
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	before, _ := idx.Entries()
	after, err := parsed.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("entry count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("entry %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}

	again, _ := parsed.Marshal()
	if string(again) != string(data) {
		t.Errorf("re-marshal differs:\n%s\n---\n%s", data, again)
	}
}

func TestOutcomeString(t *testing.T) {
	if Inserted.String() != "inserted" || AlreadyPresent.String() != "already present" {
		t.Errorf("unexpected outcome strings: %q, %q", Inserted, AlreadyPresent)
	}
}
