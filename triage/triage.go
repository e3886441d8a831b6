// Package triage evaluates a resolved document against the catalogue's
// requirements and recommends the next workflow action.
package triage

import (
	"strings"

	"github.com/hazyhaar/priorauth/fields"
	"github.com/hazyhaar/priorauth/rules"
)

// Workflow actions, in decreasing precedence.
const (
	ActionStartAppealDraft = "start_appeal_draft"
	ActionRequestMoreInfo  = "request_more_info"
	ActionSubmit           = "submit"
)

// Action is the recommended next step with a reviewer-facing reason.
type Action struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Missing lists the human-readable labels of everything the submission
// still needs: required fields without values, unsatisfied either-or
// groups, and supporting documentation the narrative checks did not find.
// Duplicates collapse to the first occurrence.
func Missing(byKey map[string]fields.Field, fullText string, cat *rules.Catalog) []string {
	var missing []string

	for _, key := range cat.Required {
		if byKey[key].Value == "" {
			missing = append(missing, cat.Label(key))
		}
	}

	for _, eo := range cat.EitherOr {
		satisfied := false
		for _, key := range eo.Keys {
			if byKey[key].Value != "" {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missing = append(missing, eo.Label)
		}
	}

	lower := strings.ToLower(fullText)
	for _, n := range cat.Narrative {
		if n.RequiresValue != "" && byKey[n.RequiresValue].Value == "" {
			continue
		}
		if !rules.ContainsAny(lower, n.AnyOf) {
			missing = append(missing, n.Label)
		}
	}

	return dedupe(missing)
}

// Recommend picks the next action. Denial language trumps everything: an
// adverse determination means the workflow is an appeal, complete or not.
func Recommend(fullText string, missing []string, cat *rules.Catalog) Action {
	if rules.ContainsAny(strings.ToLower(fullText), cat.DenialHints) {
		return Action{
			Action: ActionStartAppealDraft,
			Reason: "Denial language detected; start an appeal draft with cited reasons.",
		}
	}
	if len(missing) > 0 {
		return Action{
			Action: ActionRequestMoreInfo,
			Reason: "Missing fields or supporting documentation need to be collected.",
		}
	}
	return Action{
		Action: ActionSubmit,
		Reason: "Core fields and supporting docs appear complete.",
	}
}

func dedupe(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := labels[:0]
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
