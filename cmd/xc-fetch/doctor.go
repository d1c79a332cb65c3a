package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/franz/xc-fetch/internal/index"
	"github.com/franz/xc-fetch/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure xc-fetch can operate correctly.

This command checks:
- Config file discovery
- API key resolution (flag, XC_API_KEY, config file)
- Output directory permissions
- Index file readability and format
- Disk space availability

No request is sent to xeno-canto.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== xc-fetch doctor ===")

	outputDir, indexPath := resolvedPaths()

	results := []checkResult{
		checkConfigFile(viper.ConfigFileUsed()),
		checkAPIKey(GetConfigString("api_key", "")),
		checkOutputDirectory(outputDir),
		checkIndex(afero.NewOsFs(), indexPath),
		checkDiskSpace(outputDir),
	}

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	if hasErrors {
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before fetching.")
	} else {
		util.SuccessLog("All checks passed.")
	}

	return nil
}

// checkConfigFile reports which config file was loaded
func checkConfigFile(path string) checkResult {
	if path == "" {
		return checkResult{
			name:    "Config file",
			warning: true,
			message: fmt.Sprintf("none found (looked for %s up to %d levels up)", configMarker, anchorSearchDepth),
		}
	}

	if _, err := os.Stat(path); err != nil {
		return checkResult{
			name:    "Config file",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Config file",
		message: path,
	}
}

// checkAPIKey verifies a key was resolved without printing it
func checkAPIKey(key string) checkResult {
	if key == "" {
		return checkResult{
			name:    "API key",
			error:   true,
			message: "not set (use --key, XC_API_KEY or api_key in the config file)",
		}
	}

	return checkResult{
		name:    "API key",
		message: fmt.Sprintf("set (%d characters)", len(key)),
	}
}

// checkOutputDirectory verifies the output directory is writable
func checkOutputDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Output directory",
				message: fmt.Sprintf("%s (will be created on first fetch)", path),
			}
		}
		return checkResult{
			name:    "Output directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Output directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check write permission by creating a temp file
	f, err := os.CreateTemp(path, ".xc-fetch-write-test-*")
	if err != nil {
		return checkResult{
			name:    "Output directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(f.Name())

	return checkResult{
		name:    "Output directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkIndex verifies the index file parses
func checkIndex(fs afero.Fs, path string) checkResult {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Index",
				message: fmt.Sprintf("%s (will be created on first fetch)", path),
			}
		}
		return checkResult{
			name:    "Index",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Index",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", path),
		}
	}

	idx, err := index.NewMerger(fs).Load(path)
	if err != nil {
		return checkResult{
			name:    "Index",
			error:   true,
			message: err.Error(),
		}
	}

	return checkResult{
		name:    "Index",
		message: fmt.Sprintf("%s (%s, %d sounds)", path, humanize.Bytes(uint64(info.Size())), len(idx.Sounds)),
	}
}

// checkDiskSpace verifies available disk space where files will be written
func checkDiskSpace(path string) checkResult {
	// Walk up to the nearest existing directory
	dir := path
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return checkResult{
			name:    "Disk space",
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)

	// Recordings are a few MB each; warn below 100 MB
	if availBytes < 100*1000*1000 {
		return checkResult{
			name:    "Disk space",
			warning: true,
			message: fmt.Sprintf("%s available (low space!)", humanize.Bytes(availBytes)),
		}
	}

	return checkResult{
		name:    "Disk space",
		message: fmt.Sprintf("%s available", humanize.Bytes(availBytes)),
	}
}
