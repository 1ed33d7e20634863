package operation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpIsValid(t *testing.T) {
	tests := []struct {
		name     string
		opType   Op
		expected bool
	}{
		{"Valid - operino provision", OpOperinoProvision, true},
		{"Valid - operino deprovision", OpOperinoDeprovision, true},
		{"Invalid - empty string", Op(""), false},
		{"Invalid - unsupported op", Op("operino.resize"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.opType.IsValid())
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Op
		wantErr bool
	}{
		{"provision", "operino.provision", OpOperinoProvision, false},
		{"deprovision", "operino.deprovision", OpOperinoDeprovision, false},
		{"empty", "", "", true},
		{"unknown", "tenant.create", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseType(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled} {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("done")
	assert.Error(t, err)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("operino_id", "must be positive")
	assert.Equal(t, "validation error on field 'operino_id': must be positive", err.Error())
}

func TestNewOperation(t *testing.T) {
	id := int64(7)

	tests := []struct {
		name      string
		opType    Op
		operinoID *int64
		wantErr   bool
	}{
		{"provision", OpOperinoProvision, &id, false},
		{"no operino", OpOperinoDeprovision, nil, false},
		{"invalid type", Op("bogus"), &id, true},
		{"non-positive operino", OpOperinoProvision, new(int64), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			op, err := NewOperation(tc.opType, tc.operinoID, map[string]any{"k": "v"})
			if tc.wantErr {
				var verr ValidationError
				assert.ErrorAs(t, err, &verr)
				assert.Nil(t, op)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPending, op.Status)
			assert.Equal(t, tc.opType, op.Type)
			assert.Equal(t, tc.operinoID, op.OperinoID)
			assert.False(t, op.CreatedAt.IsZero())
			assert.Nil(t, op.StartedAt)
		})
	}
}

func TestNewProvisionOperation(t *testing.T) {
	op, err := NewProvisionOperation(3, "task-1", "acme", true)
	require.NoError(t, err)

	assert.Equal(t, OpOperinoProvision, op.Type)
	assert.Equal(t, int64(3), *op.OperinoID)
	assert.Equal(t, "task-1", op.Parameters["task_id"])
	assert.Equal(t, "acme", op.Parameters["domain"])
	assert.Equal(t, true, op.Parameters["seed"])
}

func TestOperationLifecycle(t *testing.T) {
	op, err := NewDeprovisionOperation(4, "acme")
	require.NoError(t, err)
	assert.True(t, op.IsPending())
	assert.False(t, op.IsTerminal())
	assert.Nil(t, op.Duration())

	op.Start()
	assert.True(t, op.IsInProgress())
	require.NotNil(t, op.StartedAt)

	op.Complete(map[string]any{"truncated": true})
	assert.True(t, op.IsTerminal())
	assert.Equal(t, StatusCompleted, op.Status)
	require.NotNil(t, op.Duration())
	assert.GreaterOrEqual(t, *op.Duration(), time.Duration(0))
}

func TestOperationFail(t *testing.T) {
	op, err := NewProvisionOperation(1, "task", "acme", false)
	require.NoError(t, err)
	op.Start()

	op.Fail("create-user failed", map[string]any{"failed_stage": "create-user"})
	assert.Equal(t, StatusFailed, op.Status)
	require.NotNil(t, op.ErrorMessage)
	assert.Equal(t, "create-user failed", *op.ErrorMessage)
	assert.Equal(t, "create-user", op.Result["failed_stage"])

	op.Fail("again", nil)
	assert.Equal(t, "create-user", op.Result["failed_stage"], "nil result keeps the previous one")
}

func TestOperationCancel(t *testing.T) {
	op, err := NewProvisionOperation(1, "task", "acme", false)
	require.NoError(t, err)

	op.Cancel("shutdown")
	assert.Equal(t, StatusCancelled, op.Status)
	assert.True(t, op.IsTerminal())
	assert.False(t, op.IsRetryable())
}

func TestIsStalled(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)

	tests := []struct {
		name string
		op   *Operation
		want bool
	}{
		{"pending past threshold", &Operation{Status: StatusPending, CreatedAt: old}, true},
		{"recently updated", &Operation{Status: StatusInProgress, CreatedAt: old, UpdatedAt: &now}, false},
		{"terminal never stalls", &Operation{Status: StatusFailed, CreatedAt: old}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.op.IsStalled(now, 10*time.Minute))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		op   *Operation
		want bool
	}{
		{"completed", &Operation{Type: OpOperinoProvision, Status: StatusCompleted}, false},
		{"failed provision", &Operation{Type: OpOperinoProvision, Status: StatusFailed}, true},
		{"failed deprovision before truncation", &Operation{Type: OpOperinoDeprovision, Status: StatusFailed}, true},
		{
			"failed deprovision after truncation",
			&Operation{Type: OpOperinoDeprovision, Status: StatusFailed, Result: map[string]any{"truncated": true}},
			false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.op.IsRetryable())
		})
	}
}
