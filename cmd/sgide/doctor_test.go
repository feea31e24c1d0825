package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skillgate/ide-core/internal/readiness"
)

func TestNextStepHint(t *testing.T) {
	install := readiness.State{NextStep: readiness.StepInstallCLI, CLIInstallHint: readiness.DefaultInstallHint}
	assert.Equal(t, readiness.DefaultInstallHint, nextStepHint("skillgate", install))

	login := readiness.State{NextStep: readiness.StepLogin}
	assert.Equal(t, "Run: skillgate auth login", nextStepHint("skillgate", login))

	start := readiness.State{NextStep: readiness.StepStartSidecar}
	assert.Equal(t, "Run: skillgate sidecar start", nextStepHint("skillgate", start))

	assert.Empty(t, nextStepHint("skillgate", readiness.State{NextStep: readiness.StepReady}))
}
