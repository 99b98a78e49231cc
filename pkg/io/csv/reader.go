// Package csv reads historical sensor readings from tabular CSV files such as
// the predictive-maintenance dataset.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"machinesentry/pkg/sensor"
)

// Column names as they appear in the dataset header, matched after lowering
// and trimming.
const (
	colAirTemp     = "air temperature [k]"
	colProcessTemp = "process temperature [k]"
	colSpeed       = "rotational speed [rpm]"
	colTorque      = "torque [nm]"
	colToolWear    = "tool wear [min]"
	colType        = "type"
)

// Reader reads sensor readings from a CSV file. The file must carry a header
// row naming at least the air-temperature and rotational-speed columns.
type Reader struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
	index   map[string]int
	skipped int
}

// NewReader opens filename and validates its header.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, errors.New("csv: empty dataset file")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colAirTemp, colSpeed} {
		if _, ok := index[required]; !ok {
			file.Close()
			return nil, fmt.Errorf("csv: missing required column %q", required)
		}
	}

	return &Reader{
		file:    file,
		reader:  cr,
		headers: headers,
		index:   index,
	}, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Skipped returns the number of malformed rows dropped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Read returns all remaining rows as sensor readings. Malformed rows are
// skipped and counted, not fatal.
func (r *Reader) Read() ([]sensor.Reading, error) {
	var readings []sensor.Reading

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.skipped++
			continue
		}

		reading, err := r.parseRecord(record)
		if err != nil {
			r.skipped++
			continue
		}
		readings = append(readings, reading)
	}

	return readings, nil
}

// Stream returns a channel of readings for real-time processing.
func (r *Reader) Stream(ctx context.Context) (<-chan sensor.Reading, error) {
	out := make(chan sensor.Reading, 100)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				record, err := r.reader.Read()
				if err == io.EOF {
					return
				}
				if err != nil {
					r.skipped++
					continue
				}

				reading, err := r.parseRecord(record)
				if err != nil {
					r.skipped++
					continue
				}

				select {
				case out <- reading:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func (r *Reader) parseRecord(record []string) (sensor.Reading, error) {
	var reading sensor.Reading

	airTemp, err := r.floatAt(record, colAirTemp)
	if err != nil {
		return reading, err
	}
	speed, err := r.floatAt(record, colSpeed)
	if err != nil {
		return reading, err
	}

	reading.AirTempK = airTemp
	reading.RotationalSpeedRPM = speed

	// Optional columns: ignore when absent or unparsable.
	if v, err := r.floatAt(record, colProcessTemp); err == nil {
		reading.ProcessTempK = v
	}
	if v, err := r.floatAt(record, colTorque); err == nil {
		reading.TorqueNm = v
	}
	if v, err := r.floatAt(record, colToolWear); err == nil {
		reading.ToolWearMin = v
	}
	if i, ok := r.index[colType]; ok && i < len(record) {
		reading.ProductType = strings.TrimSpace(record[i])
	}

	return reading, nil
}

func (r *Reader) floatAt(record []string, col string) (float64, error) {
	i, ok := r.index[col]
	if !ok || i >= len(record) {
		return 0, fmt.Errorf("csv: column %q absent", col)
	}
	return strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
}
