package scraper

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	spculog "github.com/SPCU/Libraries/log"
	"github.com/SPCU/KairosDB/kairosdb"
)

var log, _ = spculog.NewLogger(spculog.SpcuLoggerConfig{})

// TokenConfig holds the OAuth2 client credentials used when OAuth2 is on.
type TokenConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// GlobalConfig describes the KairosDB instance and where results go.
type GlobalConfig struct {
	URL         string        `yaml:"url"`
	OAuth2      bool          `yaml:"oauth2"`
	Timeout     time.Duration `yaml:"timeout"`
	Token       TokenConfig   `yaml:"token"`
	RemoteWrite []string      `yaml:"remote_write"`
}

// JobConfig is one query to run against KairosDB.
type JobConfig struct {
	Name        string                `yaml:"job_name"`
	Metric      string                `yaml:"metric"`
	Tags        map[string][]string   `yaml:"tags"`
	Aggregators []kairosdb.Aggregator `yaml:"aggregators"`
	Start       *int                  `yaml:"start"`
	TimeUnit    string                `yaml:"time_unit"`
}

// Config is the whole scraper configuration file.
type Config struct {
	Global GlobalConfig `yaml:"global"`
	Jobs   []JobConfig  `yaml:"queries"`
}

// Validate checks the fields every run needs.
func (c Config) Validate() error {
	if c.Global.URL == "" {
		return errors.New("global.url is required")
	}
	if c.Global.OAuth2 && c.Global.Token.TokenURL == "" {
		return errors.New("global.token.token_url is required when oauth2 is enabled")
	}
	for i, jc := range c.Jobs {
		if jc.Metric == "" {
			return errors.Errorf("queries[%d]: metric is required", i)
		}
	}
	return nil
}

// GatherResult stores the result of one job's query.
type GatherResult struct {
	JobConfig JobConfig
	Result    kairosdb.QueryResult
}

// Querier runs a single KairosDB query. *kairosdb.Client implements it.
type Querier interface {
	Query(ctx context.Context, req kairosdb.QueryRequest) (kairosdb.QueryResult, error)
}

// MetricScraper runs the configured queries against KairosDB.
type MetricScraper struct {
	Config Config
	client Querier
}

// Request returns the query request for the job.
func (jc *JobConfig) Request() kairosdb.QueryRequest {
	return kairosdb.QueryRequest{
		Name:        jc.Metric,
		Tags:        jc.Tags,
		Aggregators: jc.Aggregators,
		Start:       jc.Start,
		TimeUnit:    jc.TimeUnit,
	}
}

// JobName returns the job name, or the metric when the job has none.
func (jc *JobConfig) JobName() string {
	if jc.Name == "" {
		return jc.Metric
	}
	return jc.Name
}

// gatherMetrics runs the job's query
func (ms *MetricScraper) gatherMetrics(ctx context.Context, jc JobConfig) (GatherResult, error) {
	result, err := ms.client.Query(ctx, jc.Request())
	if err != nil {
		return GatherResult{}, errors.Wrapf(err, "job %s", jc.JobName())
	}

	return GatherResult{JobConfig: jc, Result: result}, nil
}

// GatherAllMetrics runs every configured job in order. Failed jobs are
// logged and skipped.
func (ms *MetricScraper) GatherAllMetrics(ctx context.Context) ([]GatherResult, error) {
	var gatherResults []GatherResult
	for _, jobConfig := range ms.Config.Jobs {
		if err := ctx.Err(); err != nil {
			return gatherResults, err
		}

		result, err := ms.gatherMetrics(ctx, jobConfig)
		if err != nil {
			log.Warn(err)
			continue
		}
		gatherResults = append(gatherResults, result)
	}

	return gatherResults, nil
}

// NewScraper runs the jobs of cfg through client
func NewScraper(client Querier, cfg Config) (*MetricScraper, error) {
	if client == nil {
		return nil, errors.New("scraper needs a client")
	}
	return &MetricScraper{
		Config: cfg,
		client: client,
	}, nil
}

// ReadScraperYAMLConfigFile read the scraper config from a YAML file
func ReadScraperYAMLConfigFile(path string) (Config, error) {
	// Read config file (YAML file)
	cfgFile, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	return ParseScraperYAMLConfig(cfgFile)
}

// ParseScraperYAMLConfig parses and validates a YAML config
func ParseScraperYAMLConfig(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "can not parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}
