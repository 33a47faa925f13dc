package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector/internal/model"
)

func TestClassifyNavError_CallerCancellationPassesThrough(t *testing.T) {
	callerCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classifyNavError(errors.New("context canceled"), callerCtx, context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.FailureCanceled, model.KindOf(err))
}

func TestClassifyNavError_DeadTabMeansCrash(t *testing.T) {
	tabCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classifyNavError(errors.New("websocket closed"), context.Background(), tabCtx)
	assert.Equal(t, model.FailureSessionCrashed, model.KindOf(err))
}

func TestClassifyNavError_DeadlineMeansTimeout(t *testing.T) {
	err := classifyNavError(context.DeadlineExceeded, context.Background(), context.Background())
	assert.Equal(t, model.FailureNavigationTimeout, model.KindOf(err))
}

func TestClassifyNavError_UnknownMeansCrash(t *testing.T) {
	err := classifyNavError(errors.New("page crashed"), context.Background(), context.Background())
	assert.Equal(t, model.FailureSessionCrashed, model.KindOf(err))
}
