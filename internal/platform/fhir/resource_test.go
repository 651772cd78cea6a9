package fhir

import (
	"encoding/json"
	"testing"
)

func TestCondition_JSONShape(t *testing.T) {
	selected := true
	cond := Condition{
		ResourceType: "Condition",
		ID:           "cond-1",
		Meta:         &Meta{Profile: []string{ProfileCondition}},
		Code: CodeableConcept{
			Text:   "Vataja Jvara",
			Coding: []Coding{{System: "http://namaste.gov.in", Code: "NAM-A01.1", UserSelected: &selected}},
		},
		RecordedDate: "2024-05-01T10:30:00Z",
	}

	data, err := json.Marshal(cond)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if parsed["resourceType"] != "Condition" {
		t.Errorf("expected Condition, got %v", parsed["resourceType"])
	}
	for _, absent := range []string{"subject", "encounter", "clinicalStatus", "category"} {
		if _, ok := parsed[absent]; ok {
			t.Errorf("expected %s to be omitted", absent)
		}
	}
	code := parsed["code"].(map[string]interface{})
	coding := code["coding"].([]interface{})[0].(map[string]interface{})
	if coding["userSelected"] != true {
		t.Errorf("expected userSelected true, got %v", coding["userSelected"])
	}
}

func TestCoding_UserSelectedFalseIsKept(t *testing.T) {
	selected := false
	data, err := json.Marshal(Coding{System: "http://who.int/ayurveda", Code: "AYU-001", UserSelected: &selected})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(data) != `{"system":"http://who.int/ayurveda","code":"AYU-001","userSelected":false}` {
		t.Errorf("unexpected coding JSON: %s", data)
	}

	data, _ = json.Marshal(Coding{Code: "X"})
	if string(data) != `{"code":"X"}` {
		t.Errorf("expected userSelected to be omitted when unset, got %s", data)
	}
}

func TestOperationOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		outcome  *OperationOutcome
		code     string
		contains string
	}{
		{"too costly", NewOperationOutcome("error", "too-costly", "body too large"), "too-costly", "body too large"},
		{"invalid", InvalidOutcome("source code is required"), "invalid", "source code is required"},
	}
	for _, tt := range tests {
		if tt.outcome.ResourceType != "OperationOutcome" {
			t.Errorf("%s: expected OperationOutcome, got %s", tt.name, tt.outcome.ResourceType)
		}
		if len(tt.outcome.Issue) != 1 {
			t.Fatalf("%s: expected 1 issue, got %d", tt.name, len(tt.outcome.Issue))
		}
		issue := tt.outcome.Issue[0]
		if issue.Severity != "error" || issue.Code != tt.code || issue.Diagnostics != tt.contains {
			t.Errorf("%s: unexpected issue %+v", tt.name, issue)
		}
	}
}
