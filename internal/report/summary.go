package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// Summary describes one completed fetch for the console
type Summary struct {
	XCID        uint64
	EnglishName string
	Genus       string
	Species     string
	Recordist   string
	License     string
	Attribution string

	MetadataPath string
	AudioPath    string
	AudioBytes   int64
	IndexPath    string
	IndexOutcome string
	EventLogPath string
}

// WriteSummary prints the citation block followed by the files touched
func WriteSummary(w io.Writer, s *Summary) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "XC%d: %s (%s %s)\n", s.XCID, s.EnglishName, s.Genus, s.Species)
	fmt.Fprintf(&sb, "Recordist: %s\n", s.Recordist)
	fmt.Fprintf(&sb, "License: %s\n", s.License)
	fmt.Fprintf(&sb, "Attribution: %s\n", s.Attribution)

	if s.MetadataPath != "" {
		fmt.Fprintf(&sb, "Metadata: %s\n", s.MetadataPath)
	}
	if s.AudioPath != "" {
		fmt.Fprintf(&sb, "Audio: %s (%s)\n", s.AudioPath, humanize.Bytes(uint64(s.AudioBytes)))
	}
	if s.IndexPath != "" {
		fmt.Fprintf(&sb, "Index: %s (%s)\n", s.IndexPath, s.IndexOutcome)
	}
	if s.EventLogPath != "" {
		fmt.Fprintf(&sb, "Event log: %s\n", s.EventLogPath)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
