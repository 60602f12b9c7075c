package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/SPCU/KairosDB/kairosdb"
	"github.com/SPCU/KairosDB/scraper"
)

type queryOptions struct {
	global      scraper.GlobalConfig
	metric      string
	tags        []string
	aggregators []string
	start       int
	timeUnit    string
}

func addGlobalFlags(fs *pflag.FlagSet, gc *scraper.GlobalConfig) {
	fs.StringVar(&gc.URL, "url", "", "KairosDB base URL")
	fs.DurationVar(&gc.Timeout, "timeout", 0, "HTTP timeout (0 keeps the client default)")
	fs.BoolVar(&gc.OAuth2, "oauth2", false, "send an OAuth2 bearer token")
	fs.StringVar(&gc.Token.TokenURL, "token-url", "", "OAuth2 token endpoint")
	fs.StringVar(&gc.Token.ClientID, "client-id", "", "OAuth2 client ID")
	fs.StringVar(&gc.Token.ClientSecret, "client-secret", os.Getenv(clientSecretEnv), "OAuth2 client secret (default $"+clientSecretEnv+")")
	fs.StringSliceVar(&gc.Token.Scopes, "scope", nil, "OAuth2 scopes")
}

// job turns the command line into a scraper job so both commands share
// the request mapping.
func (o *queryOptions) job(fs *pflag.FlagSet) (scraper.JobConfig, error) {
	jc := scraper.JobConfig{
		Metric:   o.metric,
		TimeUnit: o.timeUnit,
	}
	if fs.Changed("start") {
		start := o.start
		jc.Start = &start
	}

	tags, err := parseTags(o.tags)
	if err != nil {
		return scraper.JobConfig{}, err
	}
	jc.Tags = tags

	aggregators, err := parseAggregators(o.aggregators)
	if err != nil {
		return scraper.JobConfig{}, err
	}
	jc.Aggregators = aggregators

	return jc, nil
}

// parseTags reads repeated key=value flags. Repeating a key adds values.
func parseTags(values []string) (map[string][]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	tags := map[string][]string{}
	for _, v := range values {
		kv := strings.SplitN(v, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, errors.Errorf("bad tag %q, expected key=value", v)
		}
		tags[kv[0]] = append(tags[kv[0]], kv[1])
	}
	return tags, nil
}

// parseAggregators accepts either an aggregator name or a JSON object.
func parseAggregators(values []string) ([]kairosdb.Aggregator, error) {
	if len(values) == 0 {
		return nil, nil
	}

	aggregators := make([]kairosdb.Aggregator, 0, len(values))
	for _, v := range values {
		if !strings.HasPrefix(strings.TrimSpace(v), "{") {
			aggregators = append(aggregators, kairosdb.Aggregator{"name": v})
			continue
		}

		agg := kairosdb.Aggregator{}
		if err := json.Unmarshal([]byte(v), &agg); err != nil {
			return nil, errors.Wrapf(err, "bad aggregator %s", v)
		}
		aggregators = append(aggregators, agg)
	}
	return aggregators, nil
}

func newQueryCommand() *cobra.Command {
	o := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a single metric query and print the first result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := o.job(cmd.Flags())
			if err != nil {
				return err
			}
			cfg := scraper.Config{Global: o.global, Jobs: []scraper.JobConfig{jc}}
			if err := cfg.Validate(); err != nil {
				return err
			}

			cli, err := o.global.NewClient(cmd.Context())
			if err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{"url": cli.URL(), "metric": jc.Metric}).Debug("querying")

			result, err := cli.Query(cmd.Context(), jc.Request())
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	fs := cmd.Flags()
	addGlobalFlags(fs, &o.global)
	fs.StringVar(&o.metric, "metric", "", "metric name")
	fs.StringArrayVar(&o.tags, "tag", nil, "tag filter key=value, repeatable")
	fs.StringArrayVar(&o.aggregators, "aggregator", nil, "aggregator name or JSON object, repeatable")
	fs.IntVar(&o.start, "start", -5, "relative start value")
	fs.StringVar(&o.timeUnit, "unit", "seconds", "relative start unit")

	return cmd
}
