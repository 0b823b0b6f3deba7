// Package output provides the writers that persist a finished run
// report.
package output

import (
	"fmt"

	"github.com/avitrack/avitrack/internal/config"
	"github.com/avitrack/avitrack/internal/types"
)

// Writer defines the interface for all writers that are responsible
// for persisting the finished run report to a specific output.
type Writer interface {
	Write(report *types.RunReport) error
}

const (
	STDOUT_WRITER_TYPE   = "stdout"
	FILE_WRITER_TYPE     = "file"
	DATABASE_WRITER_TYPE = "database"
)

// NewWriter creates a writer according to the writer config.
func NewWriter(wc *config.WriterConfig) (Writer, error) {
	switch wc.Type {
	case STDOUT_WRITER_TYPE:
		return NewStdoutWriter(), nil
	case FILE_WRITER_TYPE:
		return NewFileWriter(wc), nil
	case DATABASE_WRITER_TYPE:
		return NewPostgresWriter(wc), nil
	default:
		return nil, fmt.Errorf("writer of type %s not implemented", wc.Type)
	}
}

// csvHeader is the column set of the csv export.
var csvHeader = []string{
	"city", "status", "attempts", "ad_position", "ad_title", "ad_url",
	"ad_is_promoted", "seller_name", "seller_url", "error_detail",
}

// outcomeRows flattens one city outcome into csv/database rows: one
// row per matched listing, or a single listing-less row so that no
// city is ever silently omitted from the output.
func outcomeRows(o types.CityOutcome) [][]string {
	base := func() []string {
		return []string{o.City.Slug, string(o.Status), fmt.Sprintf("%d", o.Attempts)}
	}
	if len(o.Matched) == 0 {
		row := append(base(), "", "", "", "", "", "", o.ErrorDetail)
		return [][]string{row}
	}
	rows := make([][]string, 0, len(o.Matched))
	for _, l := range o.Matched {
		rows = append(rows, append(base(),
			fmt.Sprintf("%d", l.Rank), l.Title, l.URL,
			fmt.Sprintf("%t", l.Promoted), l.SellerName, l.SellerURL, ""))
	}
	return rows
}
