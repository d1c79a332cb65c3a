// Package ingest runs one fetch end to end: parse the identifier, look the
// recording up, normalize it, write it to disk and register it in the index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/xc-fetch/internal/index"
	"github.com/franz/xc-fetch/internal/meta"
	"github.com/franz/xc-fetch/internal/report"
	"github.com/franz/xc-fetch/internal/store"
	"github.com/franz/xc-fetch/internal/util"
	"github.com/franz/xc-fetch/internal/xcid"
	"github.com/franz/xc-fetch/internal/xenocanto"
	"github.com/spf13/afero"
)

// ErrNoAPIKey is returned before any network activity when no key was resolved
var ErrNoAPIKey = fmt.Errorf("%w: no xeno-canto API key (use --key, XC_API_KEY or api_key in the config file)", util.ErrInvalidConfig)

// Lookuper resolves a catalogue number to its raw record
type Lookuper interface {
	Lookup(ctx context.Context, id xcid.ID, apiKey string) (xenocanto.Recording, error)
}

// Config holds pipeline dependencies
type Config struct {
	Client *xenocanto.Client
	Fs     afero.Fs            // nil = OS filesystem
	Logger *report.EventLogger // nil = no event log
	Now    func() time.Time    // nil = time.Now
}

// Pipeline wires the fetch stages together
type Pipeline struct {
	lookuper Lookuper
	store    *store.Store
	merger   *index.Merger
	logger   *report.EventLogger
	now      func() time.Time
}

// Options describes a single fetch
type Options struct {
	Input         string
	APIKey        string
	OutputDir     string
	IndexPath     string // empty skips the index update
	DownloadAudio bool
}

// Result describes what a fetch produced
type Result struct {
	Metadata     *meta.Metadata
	Files        *store.Result
	IndexPath    string
	IndexOutcome index.Outcome
	Indexed      bool
}

// New creates a pipeline
func New(cfg *Config) *Pipeline {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	client := cfg.Client
	if client == nil {
		client = xenocanto.NewClient(nil)
	}

	return &Pipeline{
		lookuper: client,
		store:    store.New(&store.Config{Fs: fs, Downloader: client}),
		merger:   index.NewMerger(fs),
		logger:   cfg.Logger,
		now:      now,
	}
}

// Run performs the fetch. Every stage failure aborts; files written by
// earlier stages are left in place.
func (p *Pipeline) Run(ctx context.Context, opts *Options) (*Result, error) {
	id, err := xcid.Parse(opts.Input)
	if err != nil {
		p.logger.LogError(report.EventLookup, 0, err)
		return nil, err
	}

	if opts.APIKey == "" {
		p.logger.LogError(report.EventLookup, uint64(id), ErrNoAPIKey)
		return nil, ErrNoAPIKey
	}

	util.InfoLog("Fetching %s", id)

	start := time.Now()
	raw, err := p.lookuper.Lookup(ctx, id, opts.APIKey)
	if err != nil {
		p.logger.LogError(report.EventLookup, uint64(id), err)
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	p.logger.LogLookup(uint64(id), opts.Input, time.Since(start))

	m := meta.Normalize(raw, id, p.now())
	if m.XCID != id {
		util.WarnLog("Requested %s but the API returned %s", id, m.XCID)
	}

	files, err := p.store.Persist(ctx, m, raw, m.BaseName(), opts.OutputDir, opts.DownloadAudio)
	if files != nil && files.MetadataPath != "" {
		p.logger.LogPersist(uint64(m.XCID), files.MetadataPath)
	}
	if err != nil {
		stage := report.EventPersist
		if errors.Is(err, store.ErrAudioFetch) || errors.Is(err, store.ErrNoAudioURL) {
			stage = report.EventDownload
		}
		p.logger.LogError(stage, uint64(m.XCID), err)
		return nil, err
	}
	if files.AudioPath != "" {
		p.logger.LogDownload(uint64(m.XCID), files.AudioPath, files.AudioBytes, files.AudioFormat)
	}

	result := &Result{Metadata: m, Files: files}

	if opts.IndexPath == "" {
		util.DebugLog("Index update skipped")
		return result, nil
	}

	entry := indexEntry(m, files, opts.IndexPath)
	outcome, err := p.merger.Merge(opts.IndexPath, entry)
	if err != nil {
		p.logger.LogError(report.EventIndex, uint64(m.XCID), err)
		return nil, err
	}
	p.logger.LogIndex(uint64(m.XCID), opts.IndexPath, outcome.String())

	switch outcome {
	case index.Inserted:
		util.SuccessLog("Added %s to %s", m.XCID, opts.IndexPath)
	case index.AlreadyPresent:
		util.InfoLog("%s is already listed in %s", m.XCID, opts.IndexPath)
	}

	result.IndexPath = opts.IndexPath
	result.IndexOutcome = outcome
	result.Indexed = true
	return result, nil
}

// indexEntry builds the index record, with paths relative to the index file
func indexEntry(m *meta.Metadata, files *store.Result, indexPath string) index.Entry {
	dir := filepath.Dir(indexPath)

	entry := index.Entry{
		Metadata: relativeTo(dir, files.MetadataPath),
		XCID:     uint64(m.XCID),
		EN:       m.EnglishName,
		Species:  m.ScientificName(),
		Source:   meta.Source,
	}
	if files.AudioPath != "" {
		entry.Filename = relativeTo(dir, files.AudioPath)
	}
	return entry
}

// relativeTo returns path relative to dir in slash form, or path itself
// when no relative form exists
func relativeTo(dir, path string) string {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return filepath.ToSlash(path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
