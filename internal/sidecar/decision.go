package sidecar

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// BudgetStatus is the remaining allowance for one capability.
type BudgetStatus struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// DecisionEvidence is the signed attestation attached to a decision.
type DecisionEvidence struct {
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	KeyID     string `json:"key_id"`
}

// DecisionRecord is the enforcement decision returned by the sidecar. The
// engine passes it through to hosts and the audit ledger without
// interpreting anything beyond Decision and DecisionCode.
type DecisionRecord struct {
	InvocationID       string                  `json:"invocation_id"`
	Decision           string                  `json:"decision"` // ALLOW | DENY | FAIL | REQUIRE_APPROVAL
	DecisionCode       string                  `json:"decision_code"`
	ReasonCodes        []string                `json:"reason_codes"`
	PolicyVersion      string                  `json:"policy_version"`
	Budgets            map[string]BudgetStatus `json:"budgets"`
	Evidence           DecisionEvidence        `json:"evidence"`
	Degraded           bool                    `json:"degraded"`
	EntitlementVersion string                  `json:"entitlement_version"`
	LicenseMode        string                  `json:"license_mode"`
}

// decideRequest is the POST /v1/decide/full payload.
type decideRequest struct {
	InvocationID   string          `json:"invocation_id"`
	ToolInvocation json.RawMessage `json:"tool_invocation"`
}

// DecideFull submits one tool invocation for a full policy decision. The
// invocation payload is opaque to the engine; an empty invocationID gets a
// generated one, returned inside the record by the sidecar. Errors
// propagate to the caller: decisions are user-triggered actions, not
// background probes.
func (c *Client) DecideFull(ctx context.Context, invocationID string, toolInvocation json.RawMessage) (DecisionRecord, error) {
	if invocationID == "" {
		invocationID = uuid.NewString()
	}
	if len(toolInvocation) == 0 {
		toolInvocation = json.RawMessage(`{}`)
	}

	raw, err := c.post(ctx, "/v1/decide/full", decideRequest{
		InvocationID:   invocationID,
		ToolInvocation: toolInvocation,
	})
	if err != nil {
		return DecisionRecord{}, err
	}

	var record DecisionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return DecisionRecord{}, fmt.Errorf("skillgate: decode decision: %w", err)
	}
	return record, nil
}
