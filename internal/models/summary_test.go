package models

import (
	"encoding/json"
	"testing"
)

func TestDecodeSummaryRecordReadsUploadPayload(t *testing.T) {
	t.Parallel()

	record := DecodeSummaryRecord([]byte(`{
		"success": true,
		"rows": 10,
		"columns": 3,
		"column_names": ["x", "y", "z"],
		"message": "ok",
		"averages": {"x": 1.5},
		"type_distribution": {"Pump": 5, "Valve": 2, "Compressor": 3}
	}`))

	if !record.Success {
		t.Fatal("expected success flag")
	}
	if record.Rows != 10 || record.Columns != 3 {
		t.Fatalf("expected 10 rows and 3 columns, got %d and %d", record.Rows, record.Columns)
	}
	if len(record.ColumnNames) != 3 || record.ColumnNames[2] != "z" {
		t.Fatalf("unexpected column names %#v", record.ColumnNames)
	}
	if got := record.Averages["x"]; got != 1.5 {
		t.Fatalf("expected average x=1.5, got %v", got)
	}

	labels := record.TypeDistributionLabels()
	expected := []string{"Pump", "Valve", "Compressor"}
	if len(labels) != len(expected) {
		t.Fatalf("expected %d labels, got %#v", len(expected), labels)
	}
	for index := range expected {
		if labels[index] != expected[index] {
			t.Fatalf("expected payload label order %v, got %v", expected, labels)
		}
	}
}

func TestDecodeSummaryRecordToleratesMalformedFields(t *testing.T) {
	t.Parallel()

	record := DecodeSummaryRecord([]byte(`{"rows":"ten","averages":[1,2],"type_distribution":"none","message":7}`))

	if record.Success {
		t.Fatal("expected missing success flag to decode as false")
	}
	if record.Rows != 0 {
		t.Fatalf("expected non-numeric rows to decode as 0, got %d", record.Rows)
	}
	if record.Averages != nil {
		t.Fatalf("expected non-object averages to decode as nil, got %#v", record.Averages)
	}
	if record.TypeDistribution != nil {
		t.Fatalf("expected non-object distribution to decode as nil, got %#v", record.TypeDistribution)
	}
	if record.Message != "" {
		t.Fatalf("expected non-string message to decode as empty, got %q", record.Message)
	}
}

func TestSummaryRecordJSONKeepsServicePayload(t *testing.T) {
	t.Parallel()

	raw := `{"rows":4,"columns":2,"column_names":["a","b"],"uploaded_at":"2026-10-19 09:30","extra":{"k":1}}`

	var records []SummaryRecord
	if err := json.Unmarshal([]byte("["+raw+"]"), &records); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].UploadedAt != "2026-10-19 09:30" {
		t.Fatalf("expected uploaded_at to decode, got %q", records[0].UploadedAt)
	}

	encoded, err := json.Marshal(records[0])
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	if string(encoded) != raw {
		t.Fatalf("expected payload to be re-emitted verbatim, got %s", encoded)
	}
}

func TestSummaryRecordPayloadForRecordBuiltInCode(t *testing.T) {
	t.Parallel()

	record := SummaryRecord{Success: true, Rows: 2, Columns: 1, ColumnNames: []string{"only"}, Message: "done"}
	payload, err := record.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}

	decoded := DecodeSummaryRecord(payload)
	if !decoded.Success || decoded.Rows != 2 || decoded.Message != "done" {
		t.Fatalf("unexpected decoded record %#v", decoded)
	}
	if decoded.Averages != nil {
		t.Fatalf("expected averages to stay absent, got %#v", decoded.Averages)
	}
}
