package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/franz/xc-fetch/internal/ingest"
	"github.com/franz/xc-fetch/internal/report"
	"github.com/franz/xc-fetch/internal/util"
	"github.com/franz/xc-fetch/internal/xenocanto"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	apiKey := GetConfigString("api_key", "")
	if apiKey == "" {
		return ingest.ErrNoAPIKey
	}

	outputDir, indexPath := resolvedPaths()
	if GetConfigBool("no_index") {
		indexPath = ""
	}

	logger := report.NullLogger()
	if dir := GetConfigString("event_log", ""); dir != "" {
		var err error
		logger, err = report.NewEventLogger(dir, report.LevelInfo)
		if err != nil {
			return err
		}
		defer logger.Close()
		util.DebugLog("Event log: %s (run %s)", logger.Path(), logger.RunID())
	}

	client := xenocanto.NewClient(&xenocanto.Config{
		Timeout:  GetConfigDuration("timeout", xenocanto.DefaultTimeout),
		Progress: downloadProgress(),
	})

	pipeline := ingest.New(&ingest.Config{
		Client: client,
		Logger: logger,
	})

	result, err := pipeline.Run(ctx, &ingest.Options{
		Input:         args[0],
		APIKey:        apiKey,
		OutputDir:     outputDir,
		IndexPath:     indexPath,
		DownloadAudio: !GetConfigBool("metadata_only"),
	})
	if err != nil {
		return err
	}

	m := result.Metadata
	summary := &report.Summary{
		XCID:         uint64(m.XCID),
		EnglishName:  m.EnglishName,
		Genus:        m.Genus,
		Species:      m.Species,
		Recordist:    m.Recordist,
		License:      m.License,
		Attribution:  m.Attribution,
		MetadataPath: result.Files.MetadataPath,
		AudioPath:    result.Files.AudioPath,
		AudioBytes:   result.Files.AudioBytes,
		EventLogPath: logger.Path(),
	}
	if result.Indexed {
		summary.IndexPath = result.IndexPath
		summary.IndexOutcome = result.IndexOutcome.String()
	}

	return report.WriteSummary(cmd.OutOrStdout(), summary)
}

// downloadProgress draws a byte progress bar on an interactive stderr
func downloadProgress() xenocanto.ProgressFunc {
	if util.IsQuiet() || !util.IsTerminal(os.Stderr.Fd()) {
		return nil
	}

	return func(contentLength int64) io.Writer {
		return progressbar.NewOptions64(contentLength,
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
}
