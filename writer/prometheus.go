package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/prompb"

	spculog "github.com/SPCU/Libraries/log"
	"github.com/SPCU/KairosDB/models"
)

var log, _ = spculog.NewLogger(spculog.SpcuLoggerConfig{})

const (
	writeTimeout = 30 * time.Second
	userAgent    = "spcudata"
	writePath    = "/api/v1/prom/remote/write"
)

// Writer sinks time series somewhere else.
type Writer interface {
	Write(ctx context.Context, series []models.TimeSeries) error
}

// PromWriter forwards time series to Prometheus remote write endpoints
type PromWriter struct {
	endpoints  []string
	httpClient *http.Client
}

// NewPrometheusWriter creates a writer for the given endpoints. An endpoint
// without a path gets the default remote write path.
func NewPrometheusWriter(endpoints []string) (*PromWriter, error) {
	p := &PromWriter{httpClient: &http.Client{Timeout: writeTimeout}}

	for _, ep := range endpoints {
		u, err := url.Parse(ep)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid URL endpoint %s", ep)
		}
		if u.Path == "" {
			p.endpoints = append(p.endpoints, ep+writePath)
		} else {
			p.endpoints = append(p.endpoints, ep)
		}
	}

	return p, nil
}

// Endpoints returns the resolved write URLs.
func (p *PromWriter) Endpoints() []string {
	return p.endpoints
}

// tsToWriteRequest converts time series data to a prometheus write request
func tsToWriteRequest(series []models.TimeSeries) *prompb.WriteRequest {
	promTS := make([]prompb.TimeSeries, len(series))

	for i, ts := range series {
		// The special name label goes first
		labels := make([]prompb.Label, 0, len(ts.Tags)+1)
		labels = append(labels, prompb.Label{Name: "__name__", Value: ts.Name})
		for _, tag := range ts.Tags {
			labels = append(labels, prompb.Label{Name: tag.Key, Value: tag.Value})
		}

		samples := make([]prompb.Sample, len(ts.DataPoints))
		for j, dp := range ts.DataPoints {
			// Both sides count milliseconds
			samples[j] = prompb.Sample{Timestamp: dp.Timestamp, Value: dp.Value}
		}

		promTS[i] = prompb.TimeSeries{Labels: labels, Samples: samples}
	}

	return &prompb.WriteRequest{Timeseries: promTS}
}

// Write encodes the series once and sends them to every endpoint. It stops
// at the first endpoint that fails.
func (p *PromWriter) Write(ctx context.Context, series []models.TimeSeries) error {
	if len(series) == 0 {
		return nil
	}

	data, err := proto.Marshal(tsToWriteRequest(series))
	if err != nil {
		return errors.Wrap(err, "can not marshal write request")
	}
	encoded := snappy.Encode(nil, data)

	for _, ep := range p.endpoints {
		if err := p.send(ctx, ep, encoded); err != nil {
			log.Warn(err.Error())
			return err
		}
	}

	return nil
}

// send POSTs an encoded write request to a single endpoint
func (p *PromWriter) send(ctx context.Context, endpoint string, b []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "write to %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("write to %s: status %d: %s", endpoint, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		log.Warn(err.Error())
	}

	return nil
}
