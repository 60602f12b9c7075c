package parser

import (
	"github.com/SPCU/KairosDB/kairosdb"
	"github.com/SPCU/KairosDB/models"
)

// Parser reads a query result and converts it to models.TimeSeries
type Parser interface {
	Parse(result kairosdb.QueryResult) ([]models.TimeSeries, error)
}
