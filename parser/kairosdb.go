package parser

import (
	"sort"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"

	spcuLog "github.com/SPCU/Libraries/log"
	"github.com/SPCU/KairosDB/kairosdb"
	"github.com/SPCU/KairosDB/models"
)

var log, _ = spcuLog.NewLogger(spcuLog.SpcuLoggerConfig{})

// tagValueSeparator joins the values of a tag that matched more than one value.
const tagValueSeparator = ","

type KairosResultParser struct {
}

// Parse walks results[] of a query result. Each result becomes one
// TimeSeries carrying its name, tags and [timestamp, value] pairs.
func (p KairosResultParser) Parse(result kairosdb.QueryResult) ([]models.TimeSeries, error) {
	var timeSeries []models.TimeSeries
	var parseErr error

	_, err := jsonparser.ArrayEach(result, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if parseErr != nil {
			return
		}
		if err != nil {
			parseErr = err
			return
		}
		if dataType != jsonparser.Object {
			parseErr = errors.Errorf("bad result format: expected object, got %s", dataType)
			return
		}

		ts, err := parseResult(value)
		if err != nil {
			parseErr = err
			return
		}
		timeSeries = append(timeSeries, ts)
	}, "results")
	if err != nil {
		err = errors.Wrap(err, "bad result format: can not read results")
		log.Warn(err.Error())
		return nil, err
	}
	if parseErr != nil {
		log.Warn(parseErr.Error())
		return nil, parseErr
	}

	return timeSeries, nil
}

func NewKairosResultParser() (Parser, error) {
	return &KairosResultParser{}, nil
}

// parseResult converts a single element of results[].
func parseResult(data []byte) (models.TimeSeries, error) {
	name, err := jsonparser.GetString(data, "name")
	if err != nil {
		return models.TimeSeries{}, errors.Wrap(err, "bad result format: missing name")
	}

	tags, err := parseTags(data)
	if err != nil {
		return models.TimeSeries{}, errors.Wrapf(err, "bad tags in result %s", name)
	}

	points, err := parseValues(data)
	if err != nil {
		return models.TimeSeries{}, errors.Wrapf(err, "bad values in result %s", name)
	}

	return models.TimeSeries{
		Name:       name,
		Tags:       tags,
		DataPoints: points,
	}, nil
}

// parseTags reads the tags object, where each key maps to every value seen
// in the group.
func parseTags(data []byte) ([]models.Tag, error) {
	var tags []models.Tag

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.Array {
			return errors.Errorf("tag %s is not a list", key)
		}

		var values []string
		var valueErr error
		_, err := jsonparser.ArrayEach(value, func(v []byte, t jsonparser.ValueType, _ int, _ error) {
			if valueErr != nil {
				return
			}
			s, err := jsonparser.ParseString(v)
			if err != nil {
				valueErr = err
				return
			}
			values = append(values, s)
		})
		if err != nil {
			return err
		}
		if valueErr != nil {
			return valueErr
		}
		if len(values) == 0 {
			return nil
		}

		sort.Strings(values)
		tags = append(tags, models.Tag{
			Key:   string(key),
			Value: strings.Join(values, tagValueSeparator),
		})
		return nil
	}, "tags")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, err
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags, nil
}

// parseValues reads the values list of [timestamp, value] pairs.
func parseValues(data []byte) ([]models.DataPoint, error) {
	var points []models.DataPoint
	var valueErr error

	_, err := jsonparser.ArrayEach(data, func(pair []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if valueErr != nil {
			return
		}
		if dataType != jsonparser.Array {
			valueErr = errors.New("data point is not a [timestamp, value] pair")
			return
		}

		timestamp, err := jsonparser.GetInt(pair, "[0]")
		if err != nil {
			valueErr = errors.Wrap(err, "can not read the timestamp")
			return
		}
		value, err := jsonparser.GetFloat(pair, "[1]")
		if err != nil {
			valueErr = errors.Wrapf(err, "can not cast the value at %d", timestamp)
			return
		}

		points = append(points, models.DataPoint{Timestamp: timestamp, Value: value})
	}, "values")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, err
	}
	if valueErr != nil {
		return nil, valueErr
	}

	return points, nil
}
