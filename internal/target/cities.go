package target

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/avitrack/avitrack/internal/types"
)

// LoadCities reads the city list from a text file, one slug per line.
// Anything after the slug on the same line is kept as a human readable
// label. Blank lines and lines starting with # are skipped.
func LoadCities(path string) ([]types.City, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading city list: %w", err)
	}
	defer f.Close()
	return ParseCities(f)
}

func ParseCities(r io.Reader) ([]types.City, error) {
	var cities []types.City
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		city := types.City{Slug: fields[0]}
		if len(fields) > 1 {
			city.Label = strings.Join(fields[1:], " ")
		}
		cities = append(cities, city)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading city list: %w", err)
	}
	return cities, nil
}
