package meta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/franz/xc-fetch/internal/xcid"
	"github.com/franz/xc-fetch/internal/xenocanto"
	"github.com/spf13/cast"
)

const (
	// Source tags every document and index entry produced by this tool
	Source = "xeno-canto"

	// MetadataSuffix is appended to the base name of a metadata document
	MetadataSuffix = ".xc.json"

	// retrievedLayout keeps provenance at day granularity
	retrievedLayout = "2006-01-02"
)

// Metadata is the persisted form of one recording. Field order is the
// on-disk key order.
type Metadata struct {
	Source      string              `json:"source"`
	XCID        xcid.ID             `json:"xc_id"`
	URL         string              `json:"url"`
	FileURL     string              `json:"file_url"`
	Genus       string              `json:"gen"`
	Species     string              `json:"sp"`
	EnglishName string              `json:"en"`
	Recordist   string              `json:"rec"`
	Country     any                 `json:"cnt"`
	Locality    any                 `json:"loc"`
	Latitude    any                 `json:"lat"`
	Longitude   any                 `json:"lon"`
	Date        any                 `json:"date"`
	Time        any                 `json:"time"`
	Type        any                 `json:"type"`
	Quality     any                 `json:"q"`
	Length      any                 `json:"length"`
	SampleRate  *uint64             `json:"smp"`
	License     string              `json:"lic"`
	Attribution string              `json:"attribution"`
	Retrieved   string              `json:"retrieved"`
	RawResponse xenocanto.Recording `json:"raw_response"`
}

// Normalize maps a raw API record onto Metadata. It never fails: missing
// strings become "", an unparseable sample rate becomes null.
//
// The record's own id wins over the requested one when it parses.
func Normalize(raw xenocanto.Recording, requested xcid.ID, fetchedAt time.Time) *Metadata {
	id := requested
	if n, ok := uintField(raw, "id"); ok && n != 0 {
		id = xcid.ID(n)
	}

	m := &Metadata{
		Source:      Source,
		XCID:        id,
		URL:         fmt.Sprintf("https://www.%s/%d", xcid.Domain, uint64(id)),
		FileURL:     stringField(raw, "file"),
		Genus:       stringField(raw, "gen"),
		Species:     stringField(raw, "sp"),
		EnglishName: stringField(raw, "en"),
		Recordist:   stringField(raw, "rec"),
		Country:     raw["cnt"],
		Locality:    raw["loc"],
		Latitude:    raw["lat"],
		Longitude:   raw["lon"],
		Date:        raw["date"],
		Time:        raw["time"],
		Type:        raw["type"],
		Quality:     raw["q"],
		Length:      raw["length"],
		License:     stringField(raw, "lic"),
		Retrieved:   fetchedAt.UTC().Format(retrievedLayout),
		RawResponse: raw,
	}

	if smp, ok := uintField(raw, "smp"); ok {
		m.SampleRate = &smp
	}

	m.Attribution = Attribution(m.Recordist, id)

	return m
}

// Attribution renders the citation line xeno-canto asks users to display
func Attribution(recordist string, id xcid.ID) string {
	return fmt.Sprintf("%s, %s. Accessible at www.%s/%d", recordist, id, xcid.Domain, uint64(id))
}

// ScientificName joins genus and species, e.g. "Troglodytes troglodytes"
func (m *Metadata) ScientificName() string {
	return strings.TrimSpace(m.Genus + " " + m.Species)
}

// BaseName is the file name stem shared by the metadata and audio files
func (m *Metadata) BaseName() string {
	return BaseName(m.XCID, m.EnglishName, m.Genus, m.Species)
}

// Marshal renders the document as indented JSON with a trailing newline
func (m *Metadata) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// stringField returns a scalar field as a string, "" when missing or nested
func stringField(raw xenocanto.Recording, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// uintField parses a decimal field that the API may send as string or number
func uintField(raw xenocanto.Recording, key string) (uint64, bool) {
	s := strings.TrimSpace(stringField(raw, key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
