package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// utf8BOM lets spreadsheet tools detect UTF-8 so non-ASCII titles survive a round trip
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func writeCSV[T any](w io.Writer, header []string, rows []T, toRecord func(T) []string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(toRecord(row)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func readCSV[T any](path string, header []string, fromRecord func(get func(string) string) (T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	columns, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}
	for _, name := range header {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q in %s", name, path)
		}
	}

	var rows []T
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		get := func(name string) string {
			i := index[name]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}
		row, err := fromRecord(get)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
