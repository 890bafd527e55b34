package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil error", err: nil, want: Unknown},
		{name: "plain error", err: errors.New("boom"), want: Unknown},
		{name: "direct", err: New(MalformedTask, "load", errors.New("no prompt")), want: MalformedTask},
		{
			name: "wrapped",
			err:  fmt.Errorf("task 02: %w", Errorf(SectionTimeout, "run", "exceeded %s", "3m")),
			want: SectionTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("exit status 2")
	err := New(SectionProcessFailure, "run section 3", cause)

	assert.Equal(t, "run section 3: exit status 2", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, SectionProcessFailure))
	assert.False(t, Is(nil, SectionProcessFailure))
}

func TestKind_Policy(t *testing.T) {
	assert.True(t, CatalogNotFound.Fatal())
	assert.False(t, MalformedTask.Fatal())

	for _, k := range []Kind{MalformedTask, SectionTimeout, SectionProcessFailure} {
		assert.True(t, k.HaltsRun(), k.String())
	}
	for _, k := range []Kind{Unknown, CatalogNotFound, StatusCorruption, CheckpointFailure, PushFailure} {
		assert.False(t, k.HaltsRun(), k.String())
	}
}
