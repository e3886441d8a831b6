package triage

import (
	"slices"
	"strings"
	"testing"

	"github.com/hazyhaar/priorauth/fields"
	"github.com/hazyhaar/priorauth/rules"
)

// resolved builds a field index with values for the given keys.
func resolved(keys ...string) map[string]fields.Field {
	m := make(map[string]fields.Field, len(keys))
	for _, k := range keys {
		m[k] = fields.Field{Key: k, Value: "x"}
	}
	return m
}

// completeText carries every narrative hint so keyword checks pass.
const completeText = "chart note attached; labs from last quarter; patient failed step therapy"

var allRequired = []string{
	"patient.name", "patient.dob", "provider.name", "provider.npi",
	"diagnosis.icd10", "payer.name", "plan.name",
}

func TestMissing_AllRequiredReportedWhenEmpty(t *testing.T) {
	cat := rules.Default()

	missing := Missing(resolved(), "", cat)

	for _, key := range cat.Required {
		if !slices.Contains(missing, cat.Label(key)) {
			t.Fatalf("required %q should be missing: %v", key, missing)
		}
	}
	if !slices.Contains(missing, "Procedure CPT or Drug NDC") {
		t.Fatalf("either-or group should be missing: %v", missing)
	}
	if !slices.Contains(missing, "Chart notes") || !slices.Contains(missing, "Labs from last 90 days") {
		t.Fatalf("narrative checks should be missing: %v", missing)
	}
	// No drug resolved: the step therapy check must not fire.
	if slices.Contains(missing, "Failed step therapy") {
		t.Fatalf("step therapy is gated on a resolved drug: %v", missing)
	}
}

func TestMissing_EmptyWhenComplete(t *testing.T) {
	cat := rules.Default()
	byKey := resolved(append(allRequired, "procedure.cpt")...)

	missing := Missing(byKey, completeText, cat)

	if len(missing) != 0 {
		t.Fatalf("nothing should be missing: %v", missing)
	}
}

func TestMissing_EitherOrSatisfiedByOneKey(t *testing.T) {
	cat := rules.Default()

	// NDC alone satisfies the group.
	byKey := resolved(append(allRequired, "drug.ndc")...)
	missing := Missing(byKey, completeText, cat)
	if slices.Contains(missing, "Procedure CPT or Drug NDC") {
		t.Fatalf("one resolved key satisfies the group: %v", missing)
	}

	// Neither resolved: exactly the combined label appears.
	byKey = resolved(allRequired...)
	missing = Missing(byKey, completeText, cat)
	if len(missing) != 1 || missing[0] != "Procedure CPT or Drug NDC" {
		t.Fatalf("expected only the combined label, got %v", missing)
	}
}

func TestMissing_StepTherapyOnlyWithDrug(t *testing.T) {
	cat := rules.Default()
	byKey := resolved(append(allRequired, "procedure.cpt", "drug.name")...)

	text := "chart notes and labs attached" // no step therapy language
	missing := Missing(byKey, text, cat)
	if !slices.Contains(missing, "Failed step therapy") {
		t.Fatalf("drug without step therapy evidence: %v", missing)
	}

	text = "chart notes, labs, and documentation of step therapy failure"
	missing = Missing(byKey, text, cat)
	if slices.Contains(missing, "Failed step therapy") {
		t.Fatalf("step therapy language present: %v", missing)
	}
}

func TestMissing_KeywordChecksAreCaseInsensitive(t *testing.T) {
	cat := rules.Default()
	byKey := resolved(append(allRequired, "procedure.cpt")...)

	missing := Missing(byKey, "CHART NOTE attached; A1C results; FAILED STEP documented", cat)

	if len(missing) != 0 {
		t.Fatalf("keyword matching is case-insensitive: %v", missing)
	}
}

func TestMissing_Deduplicates(t *testing.T) {
	cat := rules.Default()

	missing := Missing(resolved(), "", cat)

	seen := make(map[string]int)
	for _, l := range missing {
		seen[l]++
		if seen[l] > 1 {
			t.Fatalf("duplicate label %q in %v", l, missing)
		}
	}
}

func TestRecommend_DenialTrumpsEverything(t *testing.T) {
	cat := rules.Default()

	a := Recommend("the claim was DENIED per our review", nil, cat)
	if a.Action != ActionStartAppealDraft {
		t.Fatalf("denial language must trigger an appeal, got %q", a.Action)
	}
	if !strings.Contains(a.Reason, "appeal") {
		t.Fatalf("reason should mention the appeal: %q", a.Reason)
	}

	// Even a complete submission appeals when denial language is present.
	a = Recommend("adverse determination issued", []string{}, cat)
	if a.Action != ActionStartAppealDraft {
		t.Fatalf("adverse determination must appeal, got %q", a.Action)
	}
}

func TestRecommend_MissingRequestsMoreInfo(t *testing.T) {
	a := Recommend("clean document", []string{"Provider NPI"}, rules.Default())
	if a.Action != ActionRequestMoreInfo {
		t.Fatalf("missing items request more info, got %q", a.Action)
	}
}

func TestRecommend_CompleteSubmits(t *testing.T) {
	a := Recommend("clean document", nil, rules.Default())
	if a.Action != ActionSubmit {
		t.Fatalf("complete submission submits, got %q", a.Action)
	}
	if a.Reason == "" {
		t.Fatal("every action carries a reason")
	}
}
