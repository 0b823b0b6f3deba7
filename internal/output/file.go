package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/avitrack/avitrack/internal/config"
	"github.com/avitrack/avitrack/internal/types"
)

// FileWriter persists the report as a csv and a json file in the
// configured output directory, both named after the run start time.
type FileWriter struct {
	writerConfig *config.WriterConfig
	logger       *slog.Logger
}

// NewFileWriter returns a new FileWriter
func NewFileWriter(wc *config.WriterConfig) *FileWriter {
	return &FileWriter{
		writerConfig: wc,
		logger:       slog.With(slog.String("writer", FILE_WRITER_TYPE)),
	}
}

func (fw *FileWriter) Write(report *types.RunReport) error {
	if err := os.MkdirAll(fw.writerConfig.OutDir, os.ModePerm); err != nil {
		return fmt.Errorf("error while creating output directory: %v", err)
	}
	ts := report.StartedAt.Format("20060102_150405")
	csvPath := filepath.Join(fw.writerConfig.OutDir, fmt.Sprintf("results_%s.csv", ts))
	jsonPath := filepath.Join(fw.writerConfig.OutDir, fmt.Sprintf("results_%s.json", ts))

	if err := fw.writeCSV(csvPath, report); err != nil {
		return err
	}
	if err := fw.writeJSON(jsonPath, report); err != nil {
		return err
	}
	fw.logger.Info(fmt.Sprintf("wrote %d city outcomes to %s and %s", len(report.Outcomes), csvPath, jsonPath))
	return nil
}

func (fw *FileWriter) writeCSV(path string, report *types.RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error while trying to open file: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("error while writing csv header: %v", err)
	}
	for _, o := range report.Outcomes {
		for _, row := range outcomeRows(o) {
			if err := w.Write(row); err != nil {
				return fmt.Errorf("error while writing csv row: %v", err)
			}
		}
	}
	w.Flush()
	return w.Error()
}

func (fw *FileWriter) writeJSON(path string, report *types.RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error while trying to open file: %v", err)
	}
	defer f.Close()

	// see StdoutWriter for why the report is not marshalled directly
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
	if _, err := f.Write(indentBuffer.Bytes()); err != nil {
		return fmt.Errorf("error while writing json to file: %v", err)
	}
	return nil
}
