package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (XC_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigDuration retrieves a duration config value with proper precedence
func GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	val := viper.GetDuration(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// defaultOutputDir is <anchor>/sounds inside a project, the working directory otherwise
func defaultOutputDir(anchor string) string {
	if anchor == "" {
		return "."
	}
	return filepath.Join(anchor, "sounds")
}

// defaultIndexPath is <anchor>/sounds/index.json inside a project, ./index.json otherwise
func defaultIndexPath(anchor string) string {
	if anchor == "" {
		return "index.json"
	}
	return filepath.Join(anchor, "sounds", "index.json")
}

// resolvedPaths returns the output directory and index file for this run
func resolvedPaths() (outputDir, indexPath string) {
	return GetConfigString("output_dir", defaultOutputDir(anchorDir)),
		GetConfigString("index", defaultIndexPath(anchorDir))
}
