package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash_StableAcrossKeyOrder(t *testing.T) {
	a := "on: push\nenv:\n  A: \"1\"\n  B: \"2\"\njobs:\n  build:\n    steps:\n      - run: true\n"
	b := "on: push\nenv:\n  B: \"2\"\n  A: \"1\"\njobs:\n  build:\n    steps:\n      - run: true\n"

	wa, err := Parse(strings.NewReader(a))
	require.NoError(t, err)
	wb, err := Parse(strings.NewReader(b))
	require.NoError(t, err)

	assert.Equal(t, ComputeHash(wa), ComputeHash(wb))
}

func TestComputeHash_SensitiveToContent(t *testing.T) {
	base := pushWorkflow(map[string]Job{"build": {Steps: []Step{runStep("cargo build")}}})
	baseHash := ComputeHash(base)

	mutations := map[string]*Workflow{
		"command": pushWorkflow(map[string]Job{"build": {Steps: []Step{runStep("cargo build --verbose")}}}),
		"job id":  pushWorkflow(map[string]Job{"check": {Steps: []Step{runStep("cargo build")}}}),
		"extra step": pushWorkflow(map[string]Job{"build": {Steps: []Step{
			runStep("cargo build"), runStep("cargo test"),
		}}}),
		"step env": pushWorkflow(map[string]Job{"build": {Steps: []Step{
			{Run: "cargo build", Env: map[string]string{"RUSTFLAGS": "-D warnings"}},
		}}}),
	}
	for name, w := range mutations {
		assert.NotEqual(t, baseHash, ComputeHash(w), "mutation %q must change the hash", name)
	}
}

func TestComputeHash_AdjacentFieldsDoNotCollide(t *testing.T) {
	// "ab"+"c" and "a"+"bc" in neighboring fields must hash differently
	// because of length framing.
	a := pushWorkflow(map[string]Job{"build": {Steps: []Step{{ID: "ab", Name: "c", Run: "true"}}}})
	b := pushWorkflow(map[string]Job{"build": {Steps: []Step{{ID: "a", Name: "bc", Run: "true"}}}})
	assert.NotEqual(t, ComputeHash(a), ComputeHash(b))
}
