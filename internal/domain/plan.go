package domain

import "encoding/json"

// PlanStep is one entry of an agent run's execution plan. Steps are numbered
// from 1 in execution order. Read steps run during orchestration; write steps
// are deferred behind the approval gate when the run requires approval.
type PlanStep struct {
	Step        int            `json:"step"`
	Action      Action         `json:"action"`
	Type        StepType       `json:"type"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params,omitempty"`
}

// PendingWrite is the client-facing view of a write step that has not been
// executed yet. Status is always "pending"; it exists so the approval UI can
// show what will happen when the draft is approved.
type PendingWrite struct {
	Step        int            `json:"step"`
	Action      Action         `json:"action"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params,omitempty"`
	Status      string         `json:"status"`
}

// PendingView converts a write step into its pending representation.
func (s PlanStep) PendingView() PendingWrite {
	return PendingWrite{
		Step:        s.Step,
		Action:      s.Action,
		Description: s.Description,
		Params:      s.Params,
		Status:      "pending",
	}
}

// EncodePlan serializes a plan for storage on the agent run row.
func EncodePlan(steps []PlanStep) (string, error) {
	b, err := json.Marshal(steps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePlan restores a plan serialized by EncodePlan. An empty string
// decodes to a nil slice.
func DecodePlan(raw string) ([]PlanStep, error) {
	if raw == "" {
		return nil, nil
	}
	var steps []PlanStep
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// WriteSteps filters the plan down to its write steps, preserving order.
func WriteSteps(steps []PlanStep) []PlanStep {
	var out []PlanStep
	for _, s := range steps {
		if s.Type == StepWrite {
			out = append(out, s)
		}
	}
	return out
}
