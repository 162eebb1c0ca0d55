package models

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/tidwall/gjson"
)

var errInvalidSummaryPayload = errors.New("invalid summary payload")

// SummaryRecord is one analysis result returned by the analysis service.
// Fields the service omitted or sent with an unexpected type keep their zero
// value; the payload the record was decoded from is retained verbatim so the
// export can render exactly what the service sent.
type SummaryRecord struct {
	Success          bool
	Rows             int
	Columns          int
	ColumnNames      []string
	Message          string
	Averages         map[string]float64
	TypeDistribution map[string]int64
	UploadedAt       string

	distributionLabels []string
	payload            []byte
}

type summaryRecordJSON struct {
	Success          bool               `json:"success"`
	Rows             int                `json:"rows"`
	Columns          int                `json:"columns"`
	ColumnNames      []string           `json:"column_names"`
	Message          string             `json:"message"`
	Averages         map[string]float64 `json:"averages,omitempty"`
	TypeDistribution map[string]int64   `json:"type_distribution,omitempty"`
	UploadedAt       string             `json:"uploaded_at,omitempty"`
}

func DecodeSummaryRecord(payload []byte) SummaryRecord {
	record := SummaryRecord{payload: append([]byte(nil), payload...)}

	parsed := gjson.ParseBytes(payload)
	if !parsed.IsObject() {
		return record
	}

	record.Success = parsed.Get("success").Type == gjson.True
	record.Rows = intField(parsed.Get("rows"))
	record.Columns = intField(parsed.Get("columns"))
	record.Message = stringField(parsed.Get("message"))
	record.UploadedAt = stringField(parsed.Get("uploaded_at"))

	if names := parsed.Get("column_names"); names.IsArray() {
		record.ColumnNames = make([]string, 0, len(names.Array()))
		for _, name := range names.Array() {
			record.ColumnNames = append(record.ColumnNames, name.String())
		}
	}

	if averages := parsed.Get("averages"); averages.IsObject() {
		record.Averages = map[string]float64{}
		averages.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Number {
				record.Averages[key.String()] = value.Num
			}
			return true
		})
	}

	if distribution := parsed.Get("type_distribution"); distribution.IsObject() {
		record.TypeDistribution = map[string]int64{}
		distribution.ForEach(func(key, value gjson.Result) bool {
			if value.Type != gjson.Number {
				return true
			}
			label := key.String()
			if _, seen := record.TypeDistribution[label]; !seen {
				record.distributionLabels = append(record.distributionLabels, label)
			}
			record.TypeDistribution[label] = value.Int()
			return true
		})
	}

	return record
}

func (record *SummaryRecord) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errInvalidSummaryPayload
	}
	*record = DecodeSummaryRecord(data)
	return nil
}

func (record SummaryRecord) MarshalJSON() ([]byte, error) {
	return record.Payload()
}

// Payload returns the JSON the record was decoded from, or a rendering of the
// typed fields for records built in code.
func (record SummaryRecord) Payload() ([]byte, error) {
	if len(record.payload) > 0 {
		return append([]byte(nil), record.payload...), nil
	}
	return json.Marshal(summaryRecordJSON{
		Success:          record.Success,
		Rows:             record.Rows,
		Columns:          record.Columns,
		ColumnNames:      record.ColumnNames,
		Message:          record.Message,
		Averages:         record.Averages,
		TypeDistribution: record.TypeDistribution,
		UploadedAt:       record.UploadedAt,
	})
}

// TypeDistributionLabels keeps the order the service reported categories in.
func (record SummaryRecord) TypeDistributionLabels() []string {
	if len(record.distributionLabels) > 0 {
		labels := make([]string, len(record.distributionLabels))
		copy(labels, record.distributionLabels)
		return labels
	}

	labels := make([]string, 0, len(record.TypeDistribution))
	for label := range record.TypeDistribution {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func intField(value gjson.Result) int {
	if value.Type != gjson.Number {
		return 0
	}
	return int(value.Int())
}

func stringField(value gjson.Result) string {
	if value.Type != gjson.String {
		return ""
	}
	return value.Str
}
