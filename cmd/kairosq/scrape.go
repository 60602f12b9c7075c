package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SPCU/KairosDB/models"
	"github.com/SPCU/KairosDB/parser"
	"github.com/SPCU/KairosDB/scraper"
	"github.com/SPCU/KairosDB/writer"
)

type scrapeLine struct {
	Job    string          `json:"job"`
	Metric string          `json:"metric"`
	Result json.RawMessage `json:"result"`
}

func newScrapeCommand() *cobra.Command {
	var configPath string
	var forward bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run every query of a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := scraper.ReadScraperYAMLConfigFile(configPath)
			if err != nil {
				return err
			}

			cli, err := cfg.Global.NewClient(ctx)
			if err != nil {
				return err
			}

			ms, err := scraper.NewScraper(cli, cfg)
			if err != nil {
				return err
			}

			results, err := ms.GatherAllMetrics(ctx)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"jobs": len(cfg.Jobs), "ok": len(results)}).Info("scrape finished")

			for _, r := range results {
				line := scrapeLine{Job: r.JobConfig.JobName(), Metric: r.JobConfig.Metric, Result: r.Result}
				if err := printJSON(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}

			if !forward {
				return nil
			}
			if len(cfg.Global.RemoteWrite) == 0 {
				return errors.New("--forward needs global.remote_write endpoints")
			}

			return forwardResults(cmd, cfg, results)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "kairosq.yaml", "path to the YAML config")
	cmd.Flags().BoolVar(&forward, "forward", false, "forward results to the remote write endpoints")

	return cmd
}

// forwardResults parses every result and pushes the series in one write.
func forwardResults(cmd *cobra.Command, cfg scraper.Config, results []scraper.GatherResult) error {
	p, err := parser.NewKairosResultParser()
	if err != nil {
		return err
	}
	w, err := writer.NewPrometheusWriter(cfg.Global.RemoteWrite)
	if err != nil {
		return err
	}

	var series []models.TimeSeries
	for _, r := range results {
		ts, err := p.Parse(r.Result)
		if err != nil {
			logrus.WithError(err).WithField("job", r.JobConfig.JobName()).Warn("skipping unparsable result")
			continue
		}
		series = append(series, ts...)
	}

	if err := w.Write(cmd.Context(), series); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"series": len(series), "endpoints": w.Endpoints()}).Info("forwarded")

	return nil
}
