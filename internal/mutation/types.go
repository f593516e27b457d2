package mutation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Built-in mutation types.
const (
	TypeCreateWorkOrder = "create-work-order"
	TypeSubmitCheck     = "submit-check"
)

// WorkOrder is the payload of a create-work-order mutation.
type WorkOrder struct {
	AssetID     string `json:"assetId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	ReportedBy  string `json:"reportedBy,omitempty"`
}

var workOrderPriorities = map[string]struct{}{
	"":         {},
	"low":      {},
	"medium":   {},
	"high":     {},
	"critical": {},
}

// Validate reports missing or out-of-range work order fields.
func (w WorkOrder) Validate() error {
	if strings.TrimSpace(w.AssetID) == "" {
		return errors.New("assetId is required")
	}
	if strings.TrimSpace(w.Title) == "" {
		return errors.New("title is required")
	}
	if _, ok := workOrderPriorities[strings.ToLower(w.Priority)]; !ok {
		return fmt.Errorf("priority %q is not one of low, medium, high, critical", w.Priority)
	}
	return nil
}

// CheckResult records the outcome of one checklist item.
type CheckResult struct {
	ItemID string `json:"itemId"`
	Passed bool   `json:"passed"`
	Note   string `json:"note,omitempty"`
}

// CheckSubmission is the payload of a submit-check mutation.
type CheckSubmission struct {
	ScheduleID  string        `json:"scheduleId"`
	AssetID     string        `json:"assetId"`
	CompletedAt time.Time     `json:"completedAt"`
	Results     []CheckResult `json:"results"`
}

// Validate reports missing check submission fields.
func (c CheckSubmission) Validate() error {
	if strings.TrimSpace(c.ScheduleID) == "" {
		return errors.New("scheduleId is required")
	}
	if strings.TrimSpace(c.AssetID) == "" {
		return errors.New("assetId is required")
	}
	if c.CompletedAt.IsZero() {
		return errors.New("completedAt is required")
	}
	if len(c.Results) == 0 {
		return errors.New("at least one result is required")
	}
	for i, result := range c.Results {
		if strings.TrimSpace(result.ItemID) == "" {
			return fmt.Errorf("results[%d].itemId is required", i)
		}
	}
	return nil
}

func builtins() []Definition {
	return []Definition{
		{Type: TypeCreateWorkOrder, Path: "/api/work-orders", Validate: strictValidator[WorkOrder]()},
		{Type: TypeSubmitCheck, Path: "/api/checks", Validate: strictValidator[CheckSubmission]()},
	}
}

type validatable interface {
	Validate() error
}

// strictValidator decodes the payload into T, rejecting unknown fields, and
// runs T's own validation.
func strictValidator[T validatable]() Validator {
	return func(payload json.RawMessage) error {
		var value T
		decoder := json.NewDecoder(bytes.NewReader(payload))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		return value.Validate()
	}
}
