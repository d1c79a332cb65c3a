// Package store persists recordings to a flat output directory: one
// metadata document per recording and, optionally, the audio asset.
//
// Nothing is rolled back. When the audio download fails after the
// metadata was written, the metadata file stays; running the same
// fetch again is the recovery path.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	"github.com/franz/xc-fetch/internal/meta"
	"github.com/franz/xc-fetch/internal/util"
	"github.com/franz/xc-fetch/internal/xenocanto"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
)

var (
	// ErrDirectory indicates the output directory could not be created
	ErrDirectory = errors.New("cannot create output directory")

	// ErrWrite indicates a file could not be written
	ErrWrite = errors.New("cannot write file")

	// ErrNoAudioURL indicates the record has no audio file URL
	ErrNoAudioURL = errors.New("recording has no audio file URL")

	// ErrAudioFetch indicates the audio download failed
	ErrAudioFetch = errors.New("audio download failed")
)

// Downloader fetches a binary payload into w
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Config holds store dependencies
type Config struct {
	Fs         afero.Fs
	Downloader Downloader
}

// Store writes metadata documents and audio files
type Store struct {
	fs         afero.Fs
	downloader Downloader
}

// Result lists what Persist wrote
type Result struct {
	MetadataPath string
	AudioPath    string // empty when audio was not requested
	AudioBytes   int64
	AudioFormat  string // container sniffed from the payload, empty if unknown
}

// New creates a store. A nil Fs means the OS filesystem.
func New(cfg *Config) *Store {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{
		fs:         fs,
		downloader: cfg.Downloader,
	}
}

// MetadataPath returns where the metadata document for base lives in dir
func MetadataPath(dir, base string) string {
	return filepath.Join(dir, base+meta.MetadataSuffix)
}

// Persist writes <dir>/<base>.xc.json and, if downloadAudio is set,
// <dir>/<base>.<ext>. Steps run in that order and stop at the first error.
func (s *Store) Persist(ctx context.Context, m *meta.Metadata, raw xenocanto.Recording, base, dir string, downloadAudio bool) (*Result, error) {
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDirectory, dir, err)
	}

	data, err := m.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	result := &Result{MetadataPath: MetadataPath(dir, base)}
	if err := util.WriteFileAtomic(s.fs, result.MetadataPath, data, 0644); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWrite, result.MetadataPath, err)
	}
	util.InfoLog("Wrote %s", result.MetadataPath)

	if !downloadAudio {
		return result, nil
	}

	fileURL := audioURL(raw)
	if fileURL == "" {
		return result, fmt.Errorf("%w: %s", ErrNoAudioURL, m.XCID)
	}

	ext := meta.AudioExtension(cast.ToString(raw["file-name"]))
	audioPath := filepath.Join(dir, base+"."+ext)

	n, format, err := s.downloadAudio(ctx, fileURL, audioPath)
	if err != nil {
		return result, err
	}

	result.AudioPath = audioPath
	result.AudioBytes = n
	result.AudioFormat = format
	util.InfoLog("Wrote %s (%s)", audioPath, humanize.Bytes(uint64(n)))

	return result, nil
}

// downloadAudio streams into a temp file beside dest and renames it into
// place once the payload is complete.
func (s *Store) downloadAudio(ctx context.Context, fileURL, dest string) (int64, string, error) {
	if s.downloader == nil {
		return 0, "", fmt.Errorf("%w: no downloader configured", ErrAudioFetch)
	}

	tmp, err := afero.TempFile(s.fs, filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s: %w", ErrWrite, dest, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		s.fs.Remove(tmpName)
	}

	util.InfoLog("Downloading audio...")
	n, err := s.downloader.Download(ctx, fileURL, tmp)
	if err != nil {
		cleanup()
		return 0, "", fmt.Errorf("%w: %w", ErrAudioFetch, err)
	}

	format := sniffFormat(tmp, n)

	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return 0, "", fmt.Errorf("%w: %s: %w", ErrWrite, dest, err)
	}
	if err := s.fs.Chmod(tmpName, 0644); err != nil {
		s.fs.Remove(tmpName)
		return 0, "", fmt.Errorf("%w: %s: %w", ErrWrite, dest, err)
	}
	if err := s.fs.Rename(tmpName, dest); err != nil {
		s.fs.Remove(tmpName)
		return 0, "", fmt.Errorf("%w: %s: %w", ErrWrite, dest, err)
	}

	return n, format, nil
}

// sniffFormat reports the container type of the downloaded payload.
// WAV and other untagged containers are not recognized; that is fine.
func sniffFormat(f afero.File, size int64) string {
	// tag.Identify looks for an ID3v1 trailer in the last 128 bytes
	if size < 128 {
		return ""
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	_, fileType, err := tag.Identify(f)
	if err != nil || fileType == tag.UnknownFileType {
		util.DebugLog("Could not identify audio container: %v", err)
		return ""
	}
	util.DebugLog("Audio container: %s", fileType)
	return string(fileType)
}

// audioURL returns the record's file URL; protocol-relative URLs get https
func audioURL(raw xenocanto.Recording) string {
	u := strings.TrimSpace(cast.ToString(raw["file"]))
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}
