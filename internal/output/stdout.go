package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/avitrack/avitrack/internal/types"
)

// StdoutWriter writes the report to stdout as indented json.
type StdoutWriter struct {
	logger *slog.Logger
}

// NewStdoutWriter returns a new StdoutWriter
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{
		logger: slog.With(slog.String("writer", STDOUT_WRITER_TYPE)),
	}
}

func (w *StdoutWriter) Write(report *types.RunReport) error {
	// We cannot use json.MarshalIndent directly because it replaces
	// certain html characters in listing urls with unicode escapes.
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("error while encoding report: %v", err)
	}
	var indentBuffer bytes.Buffer
	if err := json.Indent(&indentBuffer, buffer.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("error while indenting json: %v", err)
	}
	fmt.Println(indentBuffer.String())
	return nil
}

// PrintSummary renders the per-city summary table at run end.
func PrintSummary(report *types.RunReport) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"City", "Ads", "Mine", "Positions", "Status"})

	totalAds, totalMine := 0, 0
	for _, o := range report.Outcomes {
		positions := make([]string, len(o.Matched))
		for i, l := range o.Matched {
			positions[i] = strconv.Itoa(l.Rank)
		}
		pos := strings.Join(positions, ", ")
		if pos == "" {
			pos = "—"
		}
		row := []string{o.City.String(), strconv.Itoa(o.Total), strconv.Itoa(len(o.Matched)), pos, string(o.Status)}
		if o.Status == types.StatusExhausted {
			table.Rich(row, []tablewriter.Colors{{tablewriter.Normal, tablewriter.FgRedColor}, {}, {}, {}, {tablewriter.Normal, tablewriter.FgRedColor}})
		} else {
			table.Append(row)
		}
		totalAds += o.Total
		totalMine += len(o.Matched)
	}
	table.SetFooter([]string{"total", strconv.Itoa(totalAds), strconv.Itoa(totalMine), "", ""})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.SetBorder(false)
	table.Render()
}
