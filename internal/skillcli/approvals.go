package skillcli

import (
	"context"
	"fmt"
)

// ApprovalTicket is the CLI's response to `approval request`: a pending
// approval artifact recorded on disk by the CLI.
type ApprovalTicket struct {
	ApprovalID string `json:"approval_id"`
	Status     string `json:"status"`
	Path       string `json:"path"`
}

// ApprovalRequest carries the arguments for `approval request`.
type ApprovalRequest struct {
	DecisionCode string
	InvocationID string
	Reasons      []string
}

// ApproveLine asks the CLI to approve one flagged line, identified as
// file:line, by re-running the scan over the workspace with the approval
// applied. The CLI's JSON output is passed through untouched.
func (r *Runner) ApproveLine(ctx context.Context, file string, line int) (map[string]any, error) {
	var out map[string]any
	err := r.RunJSON(ctx, &out, approveLineArgs(r.Workspace, file, line)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveHook asks the CLI to approve a hook file for execution.
func (r *Runner) ApproveHook(ctx context.Context, file string) (map[string]any, error) {
	var out map[string]any
	err := r.RunJSON(ctx, &out, approveHookArgs(r.Workspace, file)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestApproval files a pending approval artifact for a blocked decision.
func (r *Runner) RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalTicket, error) {
	var ticket ApprovalTicket
	if req.DecisionCode == "" {
		return ticket, fmt.Errorf("approval request requires a decision code")
	}
	if req.InvocationID == "" {
		return ticket, fmt.Errorf("approval request requires an invocation id")
	}
	if err := r.RunJSON(ctx, &ticket, approvalRequestArgs(req)...); err != nil {
		return ApprovalTicket{}, err
	}
	return ticket, nil
}

func approveLineArgs(workspace, file string, line int) []string {
	return []string{"claude", "scan", workspace, "--approve-line", fmt.Sprintf("%s:%d", file, line)}
}

func approveHookArgs(workspace, file string) []string {
	return []string{"claude", "hooks", "approve", file, "--directory", workspace}
}

func approvalRequestArgs(req ApprovalRequest) []string {
	args := []string{
		"approval", "request",
		"--decision-code", req.DecisionCode,
		"--invocation-id", req.InvocationID,
	}
	for _, reason := range req.Reasons {
		args = append(args, "--reason", reason)
	}
	return args
}
