// Package render serializes validation results for machine and human
// consumption.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	txv "github.com/transitkit/validator"
)

// CSVHeader is the column layout of the CSV report.
var CSVHeader = []string{"file", "format", "rule", "severity", "category", "line", "column", "message"}

// CSV writes one row per diagnostic. A file with no diagnostics still
// gets a single pass row so every input file appears in the report.
func CSV(w io.Writer, result *txv.ValidationResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, file := range result.Files {
		if len(file.Errors) == 0 {
			row := []string{file.FileName, string(file.Format), "", "info", "", "", "", "validation passed"}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
			continue
		}
		for _, d := range file.Errors {
			row := []string{
				file.FileName,
				string(file.Format),
				d.RuleName,
				string(d.Severity),
				string(d.Category),
				position(d.Line),
				position(d.Column),
				d.Message,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// position renders a 1-based position, leaving unknown positions blank.
func position(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// JSON writes the result as an indented JSON document.
func JSON(w io.Writer, result *txv.ValidationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Text writes a human-readable report: one line per diagnostic, grouped
// by file, with a trailing summary.
func Text(w io.Writer, result *txv.ValidationResult) error {
	files, errs, warns := 0, 0, 0
	for _, file := range result.Files {
		files++
		if len(file.Errors) == 0 {
			if _, err := fmt.Fprintf(w, "%s: ok\n", file.FileName); err != nil {
				return err
			}
			continue
		}
		for _, d := range file.Errors {
			switch d.Severity {
			case txv.SeverityError:
				errs++
			case txv.SeverityWarning:
				warns++
			}
			if _, err := fmt.Fprintln(w, d.String()); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "\n%d files, %d errors, %d warnings\n", files, errs, warns)
	return err
}
