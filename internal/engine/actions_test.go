package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgate/ide-core/internal/audit"
	"github.com/skillgate/ide-core/internal/readiness"
	"github.com/skillgate/ide-core/internal/sidecar"
	"github.com/skillgate/ide-core/internal/skillcli"
)

type stubGate struct {
	state readiness.State
}

func (s stubGate) Check(context.Context) readiness.State { return s.state }

func readyGate() stubGate {
	return stubGate{state: readiness.State{
		CLIInstalled:   true,
		Authenticated:  true,
		SidecarRunning: true,
		NextStep:       readiness.StepReady,
	}}
}

type stubApprover struct {
	lineCalls int
	hookCalls int
	lastReq   skillcli.ApprovalRequest
	ticket    skillcli.ApprovalTicket
	err       error
}

func (s *stubApprover) ApproveLine(_ context.Context, file string, line int) (map[string]any, error) {
	s.lineCalls++
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"status": "approved", "target": fmt.Sprintf("%s:%d", file, line)}, nil
}

func (s *stubApprover) ApproveHook(_ context.Context, file string) (map[string]any, error) {
	s.hookCalls++
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"status": "approved", "file": file}, nil
}

func (s *stubApprover) RequestApproval(_ context.Context, req skillcli.ApprovalRequest) (skillcli.ApprovalTicket, error) {
	s.lastReq = req
	return s.ticket, s.err
}

type stubDecider struct {
	record sidecar.DecisionRecord
	err    error
	calls  int
}

func (s *stubDecider) DecideFull(_ context.Context, invocationID string, _ json.RawMessage) (sidecar.DecisionRecord, error) {
	s.calls++
	if s.err != nil {
		return sidecar.DecisionRecord{}, s.err
	}
	record := s.record
	if record.InvocationID == "" {
		record.InvocationID = invocationID
	}
	return record, nil
}

func testLedger(t *testing.T) *audit.Ledger {
	t.Helper()
	ledger, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestActionsRefuseWhenNotReady(t *testing.T) {
	gate := stubGate{state: readiness.State{
		CLIInstalled: true,
		NextStep:     readiness.StepLogin,
	}}
	cli := &stubApprover{}
	decider := &stubDecider{}
	a := NewActions(gate, cli, decider, nil, zerolog.Nop())
	ctx := context.Background()

	err := a.ApproveLine(ctx, "/ws/deploy.py", 12)
	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, readiness.StepLogin, notReady.State.NextStep)
	assert.Contains(t, err.Error(), "login")

	_, err = a.RequestApproval(ctx, skillcli.ApprovalRequest{DecisionCode: "SG-BLOCK-001"})
	require.ErrorAs(t, err, &notReady)

	_, err = a.Decide(ctx, "", nil)
	require.ErrorAs(t, err, &notReady)

	// Nothing below the gate may have run.
	assert.Zero(t, cli.lineCalls)
	assert.Zero(t, decider.calls)
}

func TestApproveLineRecordsAudit(t *testing.T) {
	ledger := testLedger(t)
	cli := &stubApprover{}
	a := NewActions(readyGate(), cli, &stubDecider{}, ledger, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, a.ApproveLine(ctx, "/ws/deploy.py", 12))
	assert.Equal(t, 1, cli.lineCalls)

	entries, err := ledger.Recent(ctx, audit.KindApproval, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "line approval /ws/deploy.py:12", entries[0].Summary)
}

func TestApproveHookRecordsAudit(t *testing.T) {
	ledger := testLedger(t)
	cli := &stubApprover{}
	a := NewActions(readyGate(), cli, &stubDecider{}, ledger, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, a.ApproveHook(ctx, "/ws/.claude/hooks/deploy.sh"))
	assert.Equal(t, 1, cli.hookCalls)

	entries, err := ledger.Recent(ctx, audit.KindApproval, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Summary, "hook approval")
}

func TestRequestApprovalGeneratesInvocationID(t *testing.T) {
	ledger := testLedger(t)
	cli := &stubApprover{ticket: skillcli.ApprovalTicket{
		ApprovalID: "apr-20260824-0001",
		Status:     "pending",
		Path:       ".skillgate/approvals/apr-20260824-0001.json",
	}}
	a := NewActions(readyGate(), cli, &stubDecider{}, ledger, zerolog.Nop())
	ctx := context.Background()

	ticket, err := a.RequestApproval(ctx, skillcli.ApprovalRequest{
		DecisionCode: "SG-BLOCK-001",
		Reasons:      []string{"release window"},
	})
	require.NoError(t, err)
	assert.Equal(t, "apr-20260824-0001", ticket.ApprovalID)

	// The missing invocation ID was filled with a parseable UUID.
	_, err = uuid.Parse(cli.lastReq.InvocationID)
	assert.NoError(t, err)
	assert.Equal(t, "SG-BLOCK-001", cli.lastReq.DecisionCode)

	entries, err := ledger.Recent(ctx, audit.KindApproval, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Summary, "apr-20260824-0001")
}

func TestRequestApprovalKeepsCallerInvocationID(t *testing.T) {
	cli := &stubApprover{ticket: skillcli.ApprovalTicket{ApprovalID: "apr-1", Status: "pending"}}
	a := NewActions(readyGate(), cli, &stubDecider{}, nil, zerolog.Nop())

	_, err := a.RequestApproval(context.Background(), skillcli.ApprovalRequest{
		DecisionCode: "SG-BLOCK-001",
		InvocationID: "inv-fixed",
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-fixed", cli.lastReq.InvocationID)
}

func TestDecideRecordsDecision(t *testing.T) {
	ledger := testLedger(t)
	decider := &stubDecider{record: sidecar.DecisionRecord{
		Decision:      "DENY",
		DecisionCode:  "SG-NET-001",
		ReasonCodes:   []string{"wildcard-egress"},
		PolicyVersion: "1",
	}}
	a := NewActions(readyGate(), &stubApprover{}, decider, ledger, zerolog.Nop())
	ctx := context.Background()

	record, err := a.Decide(ctx, "inv-7", json.RawMessage(`{"tool":"shell"}`))
	require.NoError(t, err)
	assert.Equal(t, "DENY", record.Decision)
	assert.Equal(t, "inv-7", record.InvocationID)

	entries, err := ledger.Recent(ctx, audit.KindDecision, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var stored sidecar.DecisionRecord
	require.NoError(t, json.Unmarshal(entries[0].Detail, &stored))
	assert.Equal(t, record, stored)
}

func TestDecidePropagatesNeedsLogin(t *testing.T) {
	ledger := testLedger(t)
	decider := &stubDecider{err: sidecar.ErrNeedsLogin}
	a := NewActions(readyGate(), &stubApprover{}, decider, ledger, zerolog.Nop())
	ctx := context.Background()

	_, err := a.Decide(ctx, "inv-8", nil)
	require.ErrorIs(t, err, sidecar.ErrNeedsLogin)

	entries, err := ledger.Recent(ctx, audit.KindDecision, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestActionsWorkWithoutLedger(t *testing.T) {
	cli := &stubApprover{}
	a := NewActions(readyGate(), cli, &stubDecider{}, nil, zerolog.Nop())

	require.NoError(t, a.ApproveLine(context.Background(), "/ws/x.py", 1))
	assert.Equal(t, 1, cli.lineCalls)
}

func TestApproveLinePropagatesCLIFailure(t *testing.T) {
	cli := &stubApprover{err: errors.New(`skillgate claude scan failed: exit status 3 (output: unknown line)`)}
	a := NewActions(readyGate(), cli, &stubDecider{}, nil, zerolog.Nop())

	err := a.ApproveLine(context.Background(), "/ws/x.py", 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
}
