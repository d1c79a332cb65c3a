package main

import (
	"fmt"
	"io"

	"github.com/franz/xc-fetch/internal/index"
	"github.com/franz/xc-fetch/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the recordings registered in the sound index",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	_, indexPath := resolvedPaths()

	idx, err := index.NewMerger(afero.NewOsFs()).Load(indexPath)
	if err != nil {
		return err
	}

	entries, err := idx.Entries()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		util.InfoLog("No recordings in %s", indexPath)
		return nil
	}

	writeEntries(cmd.OutOrStdout(), entries, util.GetTerminalWidth())
	return nil
}

// writeEntries prints one line per sound, clipped to width
func writeEntries(w io.Writer, entries []index.Entry, width int) {
	for _, e := range entries {
		file := e.Filename
		if file == "" {
			file = e.Metadata
		}
		line := fmt.Sprintf("XC%-8d %s (%s)  %s", e.XCID, e.EN, e.Species, file)
		fmt.Fprintln(w, truncateMiddle(line, width))
	}
}

// truncateMiddle shortens s to maxLen runes, keeping start and end
func truncateMiddle(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen || maxLen < 8 {
		return s
	}
	start := maxLen/2 - 2
	end := len(r) - (maxLen - start - 3)
	return string(r[:start]) + "..." + string(r[end:])
}
