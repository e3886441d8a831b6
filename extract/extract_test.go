package extract

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/hazyhaar/priorauth/fields"
	"github.com/hazyhaar/priorauth/triage"
)

// completeDoc carries every required field plus the supporting
// documentation the narrative checks look for.
const completeDoc = `Prior Authorization Request
Patient: Jane Doe
DOB: 01/02/1980
Member ID: ABC12345
Provider: Dr. Alice Smith
NPI 1234567890
Diagnosis: Type 2 diabetes
ICD-10: E11.9
Procedure: Office visit
CPT: 99213
Insurance: Acme Health
Plan: Gold PPO
Chart note attached.
Labs from 2024-01-15: A1C 7.2
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(nil, nil, nil)
}

func field(t *testing.T, resp *Response, key string) fields.Field {
	t.Helper()
	for _, f := range resp.Fields {
		if f.Key == key {
			return f
		}
	}
	t.Fatalf("field %q not in response", key)
	return fields.Field{}
}

func TestExtract_CompleteDocumentSubmits(t *testing.T) {
	svc := newTestService(t)

	resp := svc.Extract(context.Background(), []byte(completeDoc), "request.txt", "text/plain")

	if got := field(t, resp, "patient.name").Value; got != "Jane Doe" {
		t.Fatalf("patient.name = %q", got)
	}
	if got := field(t, resp, "provider.npi").Value; got != "1234567890" {
		t.Fatalf("provider.npi = %q", got)
	}
	if got := field(t, resp, "diagnosis.icd10").Value; got != "E11.9" {
		t.Fatalf("diagnosis.icd10 = %q", got)
	}
	if len(resp.MissingFields) != 0 {
		t.Fatalf("nothing should be missing: %v", resp.MissingFields)
	}
	if resp.SuggestedNextAction.Action != triage.ActionSubmit {
		t.Fatalf("complete document should submit, got %q", resp.SuggestedNextAction.Action)
	}
	if len(resp.AuditTrail) == 0 {
		t.Fatal("resolved fields must be cited in the audit trail")
	}
}

func TestExtract_MissingCodesYieldCombinedLabel(t *testing.T) {
	svc := newTestService(t)
	doc := strings.ReplaceAll(completeDoc, "CPT: 99213\n", "")

	resp := svc.Extract(context.Background(), []byte(doc), "request.txt", "")

	if !reflect.DeepEqual(resp.MissingFields, []string{"Procedure CPT or Drug NDC"}) {
		t.Fatalf("expected exactly the combined label, got %v", resp.MissingFields)
	}
	if resp.SuggestedNextAction.Action != triage.ActionRequestMoreInfo {
		t.Fatalf("missing items request more info, got %q", resp.SuggestedNextAction.Action)
	}
}

func TestExtract_DenialLanguageStartsAppeal(t *testing.T) {
	svc := newTestService(t)
	doc := completeDoc + "\nThis request received an adverse determination on review.\n"

	resp := svc.Extract(context.Background(), []byte(doc), "request.txt", "")

	if resp.SuggestedNextAction.Action != triage.ActionStartAppealDraft {
		t.Fatalf("denial language must start an appeal, got %q", resp.SuggestedNextAction.Action)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	svc := newTestService(t)
	payload := []byte(completeDoc)

	first, err := json.Marshal(svc.Extract(context.Background(), payload, "request.txt", "text/plain"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(svc.Extract(context.Background(), payload, "request.txt", "text/plain"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("identical inputs must produce identical responses")
	}
}

func TestExtract_EmptyPayloadStillWellFormed(t *testing.T) {
	svc := newTestService(t)

	resp := svc.Extract(context.Background(), nil, "empty.txt", "")

	if len(resp.Fields) != 15 {
		t.Fatalf("every catalogue key gets a field, got %d", len(resp.Fields))
	}
	if len(resp.MissingFields) == 0 {
		t.Fatal("an empty document is missing everything required")
	}
	if resp.SuggestedNextAction.Action != triage.ActionRequestMoreInfo {
		t.Fatalf("empty document requests more info, got %q", resp.SuggestedNextAction.Action)
	}
	if resp.AuditTrail == nil || resp.MissingFields == nil || resp.Document.Warnings == nil {
		t.Fatal("response slices must be non-nil")
	}
}

func TestExtract_JSONArraysNeverNull(t *testing.T) {
	svc := newTestService(t)

	raw, err := json.Marshal(svc.Extract(context.Background(), nil, "empty.txt", ""))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"fields", "missing_fields", "audit_trail"} {
		if string(decoded[key]) == "null" {
			t.Fatalf("%s must encode as an array, got null", key)
		}
	}
}

func TestExtract_PagesOmittedWhenUnknown(t *testing.T) {
	svc := newTestService(t)

	// A garbage PDF defeats both passes: page count is unknown.
	resp := svc.Extract(context.Background(), []byte("not a pdf"), "broken.pdf", "application/pdf")

	if resp.Document.Pages != nil {
		t.Fatalf("unknown page count must be omitted, got %v", *resp.Document.Pages)
	}
	if len(resp.Document.Warnings) == 0 {
		t.Fatal("degraded extraction must carry warnings")
	}
	if resp.Document.FileType != "pdf" {
		t.Fatalf("file type: %q", resp.Document.FileType)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), `"pages"`) {
		t.Fatal("pages key must be absent from the JSON when unknown")
	}
}

func TestExtract_StepTherapyGatedOnDrug(t *testing.T) {
	svc := newTestService(t)
	doc := completeDoc + "Medication: Metformin\nNDC: 0002-8215-01\n"

	resp := svc.Extract(context.Background(), []byte(doc), "request.txt", "")

	if !slices.Contains(resp.MissingFields, "Failed step therapy") {
		t.Fatalf("resolved drug without step therapy evidence: %v", resp.MissingFields)
	}

	doc += "Patient failed step therapy with two alternatives.\n"
	resp = svc.Extract(context.Background(), []byte(doc), "request.txt", "")
	if slices.Contains(resp.MissingFields, "Failed step therapy") {
		t.Fatalf("step therapy evidence present: %v", resp.MissingFields)
	}
}
