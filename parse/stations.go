package parse

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"tidbyt.dev/trainsignal/model"
)

var ErrStationTableLoadFailed = errors.New("loading station table")

type StationCSV struct {
	Code string `csv:"code"`
	Name string `csv:"name"`
}

// Loads the station table from a file. A ".csv" file must have
// code and name columns; anything else is read as a JSON object
// mapping code to name.
func LoadStations(path string) (model.StationTable, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrStationTableLoadFailed, "reading %s: %s", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseStationsCSV(buf)
	}
	return ParseStationsJSON(buf)
}

func ParseStationsJSON(buf []byte) (model.StationTable, error) {
	stations := model.StationTable{}
	err := json.Unmarshal(bom.Clean(buf), &stations)
	if err != nil {
		return nil, errors.Wrapf(ErrStationTableLoadFailed, "unmarshaling: %s", err)
	}
	if stations == nil {
		return nil, errors.Wrap(ErrStationTableLoadFailed, "table is null")
	}
	return stations, nil
}

func ParseStationsCSV(buf []byte) (model.StationTable, error) {
	// LazyCSVReader to survive sloppy quoting. The BOM reader
	// strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	rows := []*StationCSV{}
	if err := gocsv.Unmarshal(bytes.NewReader(buf), &rows); err != nil {
		return nil, errors.Wrapf(ErrStationTableLoadFailed, "unmarshaling csv: %s", err)
	}

	stations := model.StationTable{}
	for i, row := range rows {
		code := strings.TrimSpace(row.Code)
		if code == "" {
			return nil, errors.Wrapf(ErrStationTableLoadFailed, "missing code (row %d)", i+1)
		}
		stations[code] = strings.TrimSpace(row.Name)
	}

	return stations, nil
}
