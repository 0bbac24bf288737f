package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateNotServing, "not_serving"},
		{StateServing, "serving"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestStateIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StateNotServing.IsTerminal())
	assert.False(t, StateServing.IsTerminal())
	assert.False(t, StateStopping.IsTerminal())
	assert.True(t, StateStopped.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
}

func TestStatesOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []State{StateNotServing, StateServing, StateStopping, StateStopped, StateFailed}, States())
}
