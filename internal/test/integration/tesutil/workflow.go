package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahrav/operino-hub/internal/domain/operation"
)

// DefaultOperationTimeout is the default timeout for waiting for operations to complete.
const DefaultOperationTimeout = 30 * time.Second

// ErrOperationTimeout is returned when an operation doesn't complete in the expected time.
var ErrOperationTimeout = errors.New("operation timeout")

// WaitForOperationStatus polls for a specific operation status until it
// matches, the operation ends in another terminal state, or the timeout
// expires.
func WaitForOperationStatus(
	ctx context.Context,
	t *testing.T,
	operationRepo operation.Repository,
	operationID int64,
	expectedStatus operation.Status,
	timeout time.Duration,
) (*operation.Operation, error) {
	t.Helper()

	return poll(ctx, t, timeout, func(ctx context.Context) (*operation.Operation, bool, error) {
		op, err := operationRepo.FindByID(ctx, operationID)
		if errors.Is(err, operation.ErrOperationNotFound) {
			t.Logf("Operation %d not found", operationID)
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}

		t.Logf("Operation %d status: %s", operationID, op.Status)
		if op.Status == expectedStatus {
			return op, true, nil
		}
		if op.IsTerminal() {
			logTerminal(t, op, expectedStatus)
			return op, true, nil
		}
		return nil, false, nil
	})
}

// WaitForOperinoOperation polls until the Operino has an operation of the
// given type in a terminal state. Provisioning operations are created by the
// worker, so their ID is not known up front.
func WaitForOperinoOperation(
	ctx context.Context,
	t *testing.T,
	operationRepo operation.Repository,
	operinoID int64,
	opType operation.Op,
	timeout time.Duration,
) (*operation.Operation, error) {
	t.Helper()

	return poll(ctx, t, timeout, func(ctx context.Context) (*operation.Operation, bool, error) {
		ops, err := operationRepo.FindByOperinoID(ctx, operinoID)
		if err != nil {
			return nil, false, err
		}
		for _, op := range ops {
			if op.Type != opType {
				continue
			}
			t.Logf("Operation %d (%s) status: %s", op.ID, op.Type, op.Status)
			if op.IsTerminal() {
				return op, true, nil
			}
		}
		return nil, false, nil
	})
}

func poll(
	ctx context.Context,
	t *testing.T,
	timeout time.Duration,
	check func(ctx context.Context) (*operation.Operation, bool, error),
) (*operation.Operation, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrOperationTimeout
		case <-ticker.C:
			op, done, err := check(ctx)
			if err != nil {
				return nil, err
			}
			if done {
				return op, nil
			}
		}
	}
}

func logTerminal(t *testing.T, op *operation.Operation, expected operation.Status) {
	t.Helper()

	t.Logf("Operation %d in terminal state %s, but expected %s", op.ID, op.Status, expected)
	if op.Status == operation.StatusFailed && op.ErrorMessage != nil {
		t.Logf("Error details for operation %d: %s", op.ID, *op.ErrorMessage)
	}
}
