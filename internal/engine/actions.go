package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillgate/ide-core/internal/audit"
	"github.com/skillgate/ide-core/internal/readiness"
	"github.com/skillgate/ide-core/internal/sidecar"
	"github.com/skillgate/ide-core/internal/skillcli"
)

// ReadinessGate is the slice of the preflight checker that gates runtime
// actions.
type ReadinessGate interface {
	Check(ctx context.Context) readiness.State
}

// ApprovalRunner covers the SkillGate CLI commands the action layer invokes.
type ApprovalRunner interface {
	ApproveLine(ctx context.Context, file string, line int) (map[string]any, error)
	ApproveHook(ctx context.Context, file string) (map[string]any, error)
	RequestApproval(ctx context.Context, req skillcli.ApprovalRequest) (skillcli.ApprovalTicket, error)
}

// Decider covers the sidecar's full policy-decision call.
type Decider interface {
	DecideFull(ctx context.Context, invocationID string, toolInvocation json.RawMessage) (sidecar.DecisionRecord, error)
}

// NotReadyError reports a runtime action refused because preflight is not
// green. State tells the caller which step to surface.
type NotReadyError struct {
	State readiness.State
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("skillgate: runtime not ready, next step: %s", e.State.NextStep)
}

// Actions exposes the user-triggered runtime operations: line and hook
// approvals, approval requests, and policy decisions. Every call re-checks
// preflight first. Static diagnostics never pass through here and keep
// working when everything below is red.
type Actions struct {
	gate    ReadinessGate
	cli     ApprovalRunner
	decider Decider
	ledger  *audit.Ledger
	log     zerolog.Logger
}

// NewActions wires the action layer. ledger may be nil, in which case
// nothing is recorded.
func NewActions(gate ReadinessGate, cli ApprovalRunner, decider Decider, ledger *audit.Ledger, log zerolog.Logger) *Actions {
	return &Actions{gate: gate, cli: cli, decider: decider, ledger: ledger, log: log}
}

func (a *Actions) ensureReady(ctx context.Context) error {
	state := a.gate.Check(ctx)
	if !state.Ready() {
		return &NotReadyError{State: state}
	}
	return nil
}

// ApproveLine records a line-level approval through the CLI.
func (a *Actions) ApproveLine(ctx context.Context, file string, line int) error {
	if err := a.ensureReady(ctx); err != nil {
		return err
	}
	result, err := a.cli.ApproveLine(ctx, file, line)
	if err != nil {
		return err
	}
	a.record(ctx, fmt.Sprintf("line approval %s:%d", file, line), result)
	return nil
}

// ApproveHook records a hook-file approval through the CLI.
func (a *Actions) ApproveHook(ctx context.Context, file string) error {
	if err := a.ensureReady(ctx); err != nil {
		return err
	}
	result, err := a.cli.ApproveHook(ctx, file)
	if err != nil {
		return err
	}
	a.record(ctx, fmt.Sprintf("hook approval %s", file), result)
	return nil
}

// RequestApproval files an approval request. A missing invocation ID gets a
// generated one so the ticket can be correlated with later decision calls.
func (a *Actions) RequestApproval(ctx context.Context, req skillcli.ApprovalRequest) (skillcli.ApprovalTicket, error) {
	if err := a.ensureReady(ctx); err != nil {
		return skillcli.ApprovalTicket{}, err
	}
	if req.InvocationID == "" {
		req.InvocationID = uuid.NewString()
	}
	ticket, err := a.cli.RequestApproval(ctx, req)
	if err != nil {
		return skillcli.ApprovalTicket{}, err
	}
	if a.ledger != nil {
		if err := a.ledger.RecordApproval(ctx, ticket, req.DecisionCode); err != nil {
			a.log.Warn().Err(err).Msg("audit record failed")
		}
	}
	return ticket, nil
}

// Decide asks the sidecar for a full policy decision and records it. Errors
// from the sidecar, including sidecar.ErrNeedsLogin, propagate unchanged.
func (a *Actions) Decide(ctx context.Context, invocationID string, toolInvocation json.RawMessage) (sidecar.DecisionRecord, error) {
	if err := a.ensureReady(ctx); err != nil {
		return sidecar.DecisionRecord{}, err
	}
	record, err := a.decider.DecideFull(ctx, invocationID, toolInvocation)
	if err != nil {
		return sidecar.DecisionRecord{}, err
	}
	if a.ledger != nil {
		if err := a.ledger.RecordDecision(ctx, record); err != nil {
			a.log.Warn().Err(err).Msg("audit record failed")
		}
	}
	return record, nil
}

// record writes a generic approval entry, logging rather than failing the
// action when the ledger is unavailable.
func (a *Actions) record(ctx context.Context, summary string, detail any) {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.Record(ctx, audit.KindApproval, summary, detail); err != nil {
		a.log.Warn().Err(err).Msg("audit record failed")
	}
}
