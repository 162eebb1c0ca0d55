package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/terraincognita07/csvdash/internal/models"
	"github.com/tidwall/gjson"
)

const (
	HistoryExportFilename         = "upload_history_flattened.csv"
	HistoryWorkbookExportFilename = "upload_history_flattened.xlsx"
	HistoryJSONExportFilename     = "upload_history.json"

	columnNamesSeparator = ", "
)

var ErrEmptyExport = errors.New("no history to export")

var HistoryBaseColumns = []string{"success", "rows", "columns", "column_names", "message"}

// HistoryTable is the flattened history: the header and one row of textual
// values per record, every row as wide as the header.
type HistoryTable struct {
	Header []string
	Rows   [][]string
}

type flattenedRecord struct {
	fields           gjson.Result
	averages         map[string]gjson.Result
	typeDistribution map[string]gjson.Result
}

// FlattenHistory collects the averages and type_distribution keys of every
// record before building any row, so records reporting different keys still
// share one rectangular table.
func FlattenHistory(records []models.SummaryRecord) (HistoryTable, error) {
	if len(records) == 0 {
		return HistoryTable{}, ErrEmptyExport
	}

	flattened := make([]flattenedRecord, 0, len(records))
	averageKeys := map[string]struct{}{}
	distributionKeys := map[string]struct{}{}
	for _, record := range records {
		payload, err := record.Payload()
		if err != nil {
			return HistoryTable{}, err
		}

		fields := gjson.ParseBytes(payload)
		entry := flattenedRecord{
			fields:           fields,
			averages:         objectMembers(fields.Get("averages")),
			typeDistribution: objectMembers(fields.Get("type_distribution")),
		}
		for key := range entry.averages {
			averageKeys[key] = struct{}{}
		}
		for key := range entry.typeDistribution {
			distributionKeys[key] = struct{}{}
		}
		flattened = append(flattened, entry)
	}

	averageColumns := sortedKeys(averageKeys)
	distributionColumns := sortedKeys(distributionKeys)

	header := make([]string, 0, len(HistoryBaseColumns)+len(averageColumns)+len(distributionColumns))
	header = append(header, HistoryBaseColumns...)
	header = append(header, averageColumns...)
	header = append(header, distributionColumns...)

	rows := make([][]string, 0, len(flattened))
	for _, entry := range flattened {
		row := make([]string, 0, len(header))
		for _, column := range HistoryBaseColumns {
			row = append(row, baseColumnValue(entry.fields, column))
		}
		for _, key := range averageColumns {
			row = append(row, memberValue(entry.averages, key))
		}
		for _, key := range distributionColumns {
			row = append(row, memberValue(entry.typeDistribution, key))
		}
		rows = append(rows, row)
	}

	return HistoryTable{Header: header, Rows: rows}, nil
}

// EncodeHistoryCSV renders the table for spreadsheet tools: header names joined
// by commas, every data field double-quoted with embedded quotes doubled, rows
// separated by a bare newline and no trailing newline.
func EncodeHistoryCSV(table HistoryTable) string {
	lines := make([]string, 0, len(table.Rows)+1)
	lines = append(lines, strings.Join(table.Header, ","))
	for _, row := range table.Rows {
		quoted := make([]string, len(row))
		for index, value := range row {
			quoted[index] = quoteCSVField(value)
		}
		lines = append(lines, strings.Join(quoted, ","))
	}
	return strings.Join(lines, "\n")
}

func ExportHistoryCSV(records []models.SummaryRecord) (string, error) {
	table, err := FlattenHistory(records)
	if err != nil {
		return "", err
	}
	return EncodeHistoryCSV(table), nil
}

func BuildHistoryJSON(records []models.SummaryRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrEmptyExport
	}
	return json.MarshalIndent(records, "", "  ")
}

func quoteCSVField(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func baseColumnValue(fields gjson.Result, column string) string {
	if !fields.IsObject() {
		return ""
	}
	value := fields.Get(column)
	if column == "column_names" && value.IsArray() {
		names := make([]string, 0, len(value.Array()))
		for _, name := range value.Array() {
			names = append(names, textualValue(name))
		}
		return strings.Join(names, columnNamesSeparator)
	}
	return textualValue(value)
}

func memberValue(members map[string]gjson.Result, key string) string {
	value, ok := members[key]
	if !ok {
		return ""
	}
	return textualValue(value)
}

func objectMembers(value gjson.Result) map[string]gjson.Result {
	if !value.IsObject() {
		return nil
	}
	members := map[string]gjson.Result{}
	value.ForEach(func(key, member gjson.Result) bool {
		members[key.String()] = member
		return true
	})
	return members
}

func sortedKeys(keys map[string]struct{}) []string {
	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)
	return sorted
}

// textualValue renders a JSON value the way it should read in a cell: null and
// missing values are empty, nested objects and arrays become normalized JSON.
func textualValue(value gjson.Result) string {
	switch value.Type {
	case gjson.Null:
		return ""
	case gjson.False:
		return "false"
	case gjson.True:
		return "true"
	case gjson.Number:
		return formatNumber(value.Num)
	case gjson.String:
		return value.Str
	default:
		var text strings.Builder
		writeJSONText(&text, value)
		return text.String()
	}
}

// writeJSONText prints a nested value as normalized compact JSON: members keep
// their order, numbers use the same shortest form as cells and strings escape
// only quotes, backslashes and control characters.
func writeJSONText(out *strings.Builder, value gjson.Result) {
	switch {
	case value.IsObject():
		out.WriteByte('{')
		first := true
		value.ForEach(func(key, member gjson.Result) bool {
			if !first {
				out.WriteByte(',')
			}
			first = false
			writeJSONString(out, key.String())
			out.WriteByte(':')
			writeJSONText(out, member)
			return true
		})
		out.WriteByte('}')
	case value.IsArray():
		out.WriteByte('[')
		for index, element := range value.Array() {
			if index > 0 {
				out.WriteByte(',')
			}
			writeJSONText(out, element)
		}
		out.WriteByte(']')
	case value.Type == gjson.String:
		writeJSONString(out, value.Str)
	case value.Type == gjson.Number:
		out.WriteString(formatNumber(value.Num))
	case value.Type == gjson.True:
		out.WriteString("true")
	case value.Type == gjson.False:
		out.WriteString("false")
	default:
		out.WriteString("null")
	}
}

func writeJSONString(out *strings.Builder, text string) {
	out.WriteByte('"')
	for _, r := range text {
		switch r {
		case '"':
			out.WriteString(`\"`)
		case '\\':
			out.WriteString(`\\`)
		case '\b':
			out.WriteString(`\b`)
		case '\f':
			out.WriteString(`\f`)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\t':
			out.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(out, `\u%04x`, r)
				continue
			}
			out.WriteRune(r)
		}
	}
	out.WriteByte('"')
}

func formatNumber(number float64) string {
	if number == 0 {
		return "0"
	}
	magnitude := math.Abs(number)
	if magnitude >= 1e21 || magnitude < 1e-6 {
		formatted := strconv.FormatFloat(number, 'e', -1, 64)
		mantissa, exponent, _ := strings.Cut(formatted, "e")
		sign := exponent[:1]
		digits := strings.TrimLeft(exponent[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(number, 'f', -1, 64)
}
