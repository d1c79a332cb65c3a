package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/xc-fetch/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configMarker is both the project config file and the anchor for default paths
const configMarker = ".xc-fetch.yaml"

// anchorSearchDepth bounds how far up the tree the config file is looked for
const anchorSearchDepth = 8

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	// anchorDir is the directory holding configMarker, empty when none was found
	anchorDir string

	rootCmd = &cobra.Command{
		Use:   "xc-fetch [flags] <identifier>",
		Short: "Fetch a xeno-canto recording with its citation metadata",
		Long: `xc-fetch downloads a single xeno-canto recording, writes a normalized
metadata document next to it and registers both in a local sound index.

The identifier may be a bare catalogue number (928094), a prefixed one
(XC928094) or a recording URL (https://xeno-canto.org/928094).`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runFetch,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: nearest "+configMarker+" above the working directory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().String("event-log", "", "directory for a JSONL event log of this run")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP timeout (default 30s)")
	rootCmd.PersistentFlags().String("key", "", "xeno-canto API key (or XC_API_KEY)")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for metadata and audio files")
	rootCmd.PersistentFlags().String("index", "", "sound index file to update")

	// Fetch-only flags
	rootCmd.Flags().Bool("metadata-only", false, "skip the audio download")
	rootCmd.Flags().Bool("no-index", false, "skip the index update")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("event_log", rootCmd.PersistentFlags().Lookup("event-log"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("key"))
	viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("index", rootCmd.PersistentFlags().Lookup("index"))
	viper.BindPFlag("metadata_only", rootCmd.Flags().Lookup("metadata-only"))
	viper.BindPFlag("no_index", rootCmd.Flags().Lookup("no-index"))
}

func initConfig() {
	if cfgFile == "" {
		if dir, err := util.FindAnchor(".", configMarker, anchorSearchDepth); err == nil {
			anchorDir = dir
			cfgFile = filepath.Join(dir, configMarker)
		}
	}

	// Read in environment variables that match, e.g. XC_API_KEY
	viper.SetEnvPrefix("XC")
	viper.AutomaticEnv()

	var cfgErr error
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		cfgErr = viper.ReadInConfig()
	}

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	if viper.GetBool("no_color") {
		util.SetColors(false)
	}

	if cfgErr != nil {
		util.WarnLog("Cannot read config file %s: %v", cfgFile, cfgErr)
	} else if cfgFile != "" {
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if util.IsTransientError(err) {
			fmt.Fprintln(os.Stderr, "This looks temporary; running the same command again may succeed.")
		}
		os.Exit(1)
	}
}
