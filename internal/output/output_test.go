package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avitrack/avitrack/internal/config"
	"github.com/avitrack/avitrack/internal/types"
)

func testReport() *types.RunReport {
	return &types.RunReport{
		StartedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		Target:    "telefony?q=iphone",
		Outcomes: []types.CityOutcome{
			{
				City:     types.City{Slug: "moskva"},
				Status:   types.StatusSucceeded,
				Attempts: 1,
				Total:    30,
				Matched: []types.Listing{
					{Title: "iPhone 15 новый", URL: "https://www.avito.ru/moskva/telefony/iphone_1", Rank: 3},
					{Title: "iPhone 15 б/у", URL: "https://www.avito.ru/moskva/telefony/iphone_2", Rank: 17, Promoted: true},
				},
			},
			{
				City:        types.City{Slug: "kazan"},
				Status:      types.StatusExhausted,
				Attempts:    3,
				Matched:     []types.Listing{},
				ErrorDetail: "results list did not render",
			},
		},
	}
}

func TestOutcomeRowsOnePerMatch(t *testing.T) {
	report := testReport()
	rows := outcomeRows(report.Outcomes[0])
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows but got %d", len(rows))
	}
	if rows[0][3] != "3" || rows[1][3] != "17" {
		t.Fatalf("expected positions 3 and 17 but got %q and %q", rows[0][3], rows[1][3])
	}
	for _, row := range rows {
		if len(row) != len(csvHeader) {
			t.Fatalf("expected %d columns but got %d", len(csvHeader), len(row))
		}
	}
}

func TestOutcomeRowsExhaustedCityStillGetsARow(t *testing.T) {
	report := testReport()
	rows := outcomeRows(report.Outcomes[1])
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 row for an exhausted city but got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "kazan" || row[1] != string(types.StatusExhausted) {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[len(row)-1] != "results list did not render" {
		t.Fatalf("expected the error detail in the last column but got %q", row[len(row)-1])
	}
}

func TestFileWriterWritesCSVAndJSON(t *testing.T) {
	dir := t.TempDir()
	fw := NewFileWriter(&config.WriterConfig{OutDir: dir})
	report := testReport()
	if err := fw.Write(report); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}

	csvPath := filepath.Join(dir, "results_20260823_120000.csv")
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	// header + 2 matched listings + 1 exhausted city row
	if len(records) != 4 {
		t.Fatalf("expected 4 csv records but got %d", len(records))
	}
	if records[3][0] != "kazan" {
		t.Fatalf("expected the exhausted city in the last row but got %q", records[3][0])
	}

	jsonPath := filepath.Join(dir, "results_20260823_120000.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	var decoded types.RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	if len(decoded.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes in json but got %d", len(decoded.Outcomes))
	}
	if decoded.Outcomes[0].Matched[1].Rank != 17 {
		t.Fatalf("expected rank 17 to survive the roundtrip but got %d", decoded.Outcomes[0].Matched[1].Rank)
	}
}

func TestNewWriterUnknownType(t *testing.T) {
	if _, err := NewWriter(&config.WriterConfig{Type: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected an error for an unknown writer type")
	}
}
