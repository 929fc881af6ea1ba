// Package sheet flattens uploaded spreadsheets into text for the assistant.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedType = errors.New("sheet: only .csv and .xlsx files are supported")

const promptPrefix = "Read and analyse the following data:\n\n\n"

// Prompt returns the message sent to the assistant for the sheet text.
func Prompt(text string) string {
	return promptPrefix + text
}

// Parse reads the first sheet of a .csv or .xlsx file. Cells are separated by
// tabs and rows by newlines, and the result is trimmed.
func Parse(filename string, r io.Reader) (text string, err error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return "", ErrUnsupportedType
	}
	if err != nil {
		return "", fmt.Errorf("sheet: failed to read %s: %w", filepath.Base(filename), err)
	}
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, "\t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func readXLSX(r io.Reader) (rows [][]string, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}
