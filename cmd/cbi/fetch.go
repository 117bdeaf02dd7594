package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download raw source data into the raw data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "fetch"))

		httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:   cfg.Fetch.MaxRetries,
			RateLimiters: fetcher.DefaultRateLimiters(),
		})
		ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})

		type download struct {
			url  string
			dest string
		}
		var downloads []download

		if cfg.Sources.TemperatureURL != "" {
			downloads = append(downloads, download{
				url:  cfg.Sources.TemperatureURL,
				dest: filepath.Join(cfg.Data.RawDir, "temperature", "city_temperature.csv"),
			})
		}
		for i, u := range cfg.Sources.AQSURLs {
			downloads = append(downloads, download{
				url:  u,
				dest: filepath.Join(cfg.Data.RawDir, "aqs", fmt.Sprintf("aqs_%d.zip", i)),
			})
		}
		if cfg.Sources.ESGURL != "" {
			downloads = append(downloads, download{
				url:  cfg.Sources.ESGURL,
				dest: filepath.Join(cfg.Data.RawDir, "esg", "esg_ratings.zip"),
			})
		}
		for _, state := range cfg.Sources.TIGERStates {
			downloads = append(downloads, download{
				url: fmt.Sprintf(
					"https://www2.census.gov/geo/tiger/TIGER%d/TRACT/tl_%d_%s_tract.zip",
					cfg.Sources.TIGERYear, cfg.Sources.TIGERYear, state),
				dest: filepath.Join(cfg.Data.RawDir, "tiger", fmt.Sprintf("tl_%d_%s_tract.zip", cfg.Sources.TIGERYear, state)),
			})
		}

		if len(downloads) == 0 {
			log.Warn("no source URLs configured, nothing to fetch")
			return nil
		}

		for _, d := range downloads {
			f, err := fetcher.ForURL(d.url, httpF, ftpF)
			if err != nil {
				return err
			}
			n, err := f.DownloadToFile(ctx, d.url, d.dest)
			if err != nil {
				return err
			}
			log.Info("downloaded", zap.String("url", d.url), zap.Int64("bytes", n))
		}

		// TIGER archives carry the shapefile; unpack them next to the zips
		// so the extractor can glob *.shp.
		tigerDir := filepath.Join(cfg.Data.RawDir, "tiger")
		zips, err := filepath.Glob(filepath.Join(tigerDir, "*.zip"))
		if err != nil {
			return err
		}
		for _, z := range zips {
			if _, err := fetcher.ExtractZIP(z, tigerDir); err != nil {
				return err
			}
		}

		log.Info("fetch complete", zap.Int("downloads", len(downloads)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
