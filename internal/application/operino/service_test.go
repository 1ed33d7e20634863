package operino_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	app "github.com/ahrav/operino-hub/internal/application/operino"
	"github.com/ahrav/operino-hub/internal/domain/cdr"
	"github.com/ahrav/operino-hub/internal/domain/operation"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/internal/test/cdrfake"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

type MockOperinoRepo struct{ mock.Mock }

func (m *MockOperinoRepo) Create(ctx context.Context, o *operino.Operino) (int64, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOperinoRepo) FindByID(ctx context.Context, id int64) (*operino.Operino, error) {
	args := m.Called(ctx, id)
	val, _ := args.Get(0).(*operino.Operino)
	return val, args.Error(1)
}

func (m *MockOperinoRepo) FindByDomain(ctx context.Context, domain string) (*operino.Operino, error) {
	args := m.Called(ctx, domain)
	if fn, ok := args.Get(0).(func(context.Context, string) *operino.Operino); ok {
		return fn(ctx, domain), args.Error(1)
	}
	val, _ := args.Get(0).(*operino.Operino)
	return val, args.Error(1)
}

func (m *MockOperinoRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockOperationRepo struct{ mock.Mock }

func (m *MockOperationRepo) Create(ctx context.Context, op *operation.Operation) (int64, error) {
	args := m.Called(ctx, op)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOperationRepo) Update(ctx context.Context, op *operation.Operation) error {
	return m.Called(ctx, op).Error(0)
}

func (m *MockOperationRepo) FindByID(ctx context.Context, id int64) (*operation.Operation, error) {
	args := m.Called(ctx, id)
	val, _ := args.Get(0).(*operation.Operation)
	return val, args.Error(1)
}

func (m *MockOperationRepo) FindByOperinoID(ctx context.Context, id int64) ([]*operation.Operation, error) {
	args := m.Called(ctx, id)
	val, _ := args.Get(0).([]*operation.Operation)
	return val, args.Error(1)
}

func (m *MockOperationRepo) FindByStatus(ctx context.Context, s operation.Status) ([]*operation.Operation, error) {
	args := m.Called(ctx, s)
	val, _ := args.Get(0).([]*operation.Operation)
	return val, args.Error(1)
}

func (m *MockOperationRepo) FindStalled(ctx context.Context, before time.Time) ([]*operation.Operation, error) {
	args := m.Called(ctx, before)
	val, _ := args.Get(0).([]*operation.Operation)
	return val, args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	return m.Called(ctx, queue, body).Error(0)
}

type countingMetrics struct {
	created, enqueued, deprovisioned int
	deprovisionFailures             []string
}

func (c *countingMetrics) IncOperinosCreated(context.Context, bool) {
	c.created++
}

func (c *countingMetrics) IncTasksEnqueued(context.Context) {
	c.enqueued++
}

func (c *countingMetrics) IncDeprovisionSuccess(context.Context) {
	c.deprovisioned++
}

func (c *countingMetrics) IncDeprovisionFailure(_ context.Context, stage string) {
	c.deprovisionFailures = append(c.deprovisionFailures, stage)
}

var (
	now   = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	owner = operino.Owner{Login: "jdoe", Email: "jdoe@example.com", FirstName: "Jane", LastName: "Doe"}
)

type fixture struct {
	operinos   *MockOperinoRepo
	operations *MockOperationRepo
	publisher  *MockPublisher
	cdr        *cdrfake.Client
	metrics    *countingMetrics
	svc        *app.Service
}

func newFixture(defaultComponents bool) *fixture {
	f := &fixture{
		operinos:   new(MockOperinoRepo),
		operations: new(MockOperationRepo),
		publisher:  new(MockPublisher),
		cdr:        cdrfake.New(),
		metrics:    new(countingMetrics),
	}
	f.svc = app.NewService(
		f.operinos,
		f.operations,
		f.cdr,
		f.publisher,
		app.Config{TaskQueue: "operinos", DefaultComponents: defaultComponents},
		func() (string, error) { return "Gen3rated-pw", nil },
		timeutil.NewMock(now),
		f.metrics,
		logger.Noop(),
		noop.NewTracerProvider().Tracer("test"),
	)
	return f
}

func TestService_Create(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	f.operinos.On("FindByDomain", mock.Anything, "acme").Return(nil, operino.ErrOperinoNotFound)
	f.operinos.On("Create", mock.Anything, mock.AnythingOfType("*operino.Operino")).Return(int64(11), nil)

	var published []byte
	f.publisher.On("Publish", mock.Anything, "operinos", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil)

	res, err := f.svc.Create(ctx, app.CreateParams{Name: "Acme", Domain: "acme", Owner: owner, Provision: true})
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.Operino.ID)
	assert.Len(t, res.Operino.Components, 2)
	assert.Equal(t, now, res.Operino.CreatedAt)

	task, err := operino.DecodeTask(published)
	require.NoError(t, err)
	assert.Equal(t, res.TaskID, task.ID)
	assert.Equal(t, int64(11), task.OperinoID)
	assert.Equal(t, "jdoe_acme", task.User.Username)
	assert.Equal(t, "Gen3rated-pw", task.User.Password)
	assert.True(t, task.Provision)
	assert.Equal(t, now, task.EnqueuedAt)

	assert.Equal(t, 1, f.metrics.created)
	assert.Equal(t, 1, f.metrics.enqueued)
	f.operinos.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestService_Create_KeepsSuppliedComponents(t *testing.T) {
	f := newFixture(false)
	f.operinos.On("FindByDomain", mock.Anything, "acme").Return(nil, operino.ErrOperinoNotFound)
	f.operinos.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.publisher.On("Publish", mock.Anything, "operinos", mock.Anything).Return(nil)

	res, err := f.svc.Create(context.Background(), app.CreateParams{Name: "Acme", Domain: "acme", Owner: owner})
	require.NoError(t, err)
	assert.Empty(t, res.Operino.Components, "defaults disabled")
}

func TestService_Create_Errors(t *testing.T) {
	tests := []struct {
		name    string
		params  app.CreateParams
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "invalid domain",
			params:  app.CreateParams{Name: "Acme", Domain: "Acme!", Owner: owner},
			setup:   func(*fixture) {},
			wantErr: operino.ErrInvalidDomain,
		},
		{
			name:   "domain taken",
			params: app.CreateParams{Name: "Acme", Domain: "acme", Owner: owner},
			setup: func(f *fixture) {
				f.operinos.On("FindByDomain", mock.Anything, "acme").Return(&operino.Operino{ID: 3}, nil)
			},
			wantErr: operino.ErrDomainTaken,
		},
		{
			name:   "lookup failure",
			params: app.CreateParams{Name: "Acme", Domain: "acme", Owner: owner},
			setup: func(f *fixture) {
				f.operinos.On("FindByDomain", mock.Anything, "acme").Return(nil, errors.New("db down"))
			},
		},
		{
			name:   "publish failure",
			params: app.CreateParams{Name: "Acme", Domain: "acme", Owner: owner},
			setup: func(f *fixture) {
				f.operinos.On("FindByDomain", mock.Anything, "acme").Return(nil, operino.ErrOperinoNotFound)
				f.operinos.On("Create", mock.Anything, mock.Anything).Return(int64(1), nil)
				f.publisher.On("Publish", mock.Anything, "operinos", mock.Anything).Return(errors.New("broker down"))
				f.operinos.On("Delete", mock.Anything, int64(1)).Return(nil)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(true)
			tc.setup(f)

			res, err := f.svc.Create(context.Background(), tc.params)
			require.Error(t, err)
			assert.Nil(t, res)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			assert.Zero(t, f.metrics.enqueued)
			f.operinos.AssertExpectations(t)
		})
	}
}

func TestService_Create_EnqueueFailureFreesDomain(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	params := app.CreateParams{Name: "Acme", Domain: "acme", Owner: owner, Provision: true}

	var stored *operino.Operino
	f.operinos.On("FindByDomain", mock.Anything, "acme").
		Return(func(context.Context, string) *operino.Operino { return stored }, nil)
	f.operinos.On("Create", mock.Anything, mock.AnythingOfType("*operino.Operino")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*operino.Operino) }).
		Return(int64(1), nil)
	f.operinos.On("Delete", mock.Anything, int64(1)).
		Run(func(mock.Arguments) { stored = nil }).
		Return(nil)
	f.publisher.On("Publish", mock.Anything, "operinos", mock.Anything).Return(errors.New("broker down")).Once()
	f.publisher.On("Publish", mock.Anything, "operinos", mock.Anything).Return(nil).Once()

	_, err := f.svc.Create(ctx, params)
	require.Error(t, err)
	f.operinos.AssertCalled(t, "Delete", mock.Anything, int64(1))

	res, err := f.svc.Create(ctx, params)
	require.NoError(t, err, "domain is free again after a failed enqueue")
	assert.Equal(t, int64(1), res.Operino.ID)
	assert.Equal(t, 1, f.metrics.enqueued)
}

func TestService_Create_EnqueueAndCleanupFailure(t *testing.T) {
	f := newFixture(true)
	f.operinos.On("FindByDomain", mock.Anything, "acme").Return(nil, operino.ErrOperinoNotFound)
	f.operinos.On("Create", mock.Anything, mock.Anything).Return(int64(4), nil)
	f.operinos.On("Delete", mock.Anything, int64(4)).Return(errors.New("db down"))
	publishErr := errors.New("broker down")
	f.publisher.On("Publish", mock.Anything, "operinos", mock.Anything).Return(publishErr)

	_, err := f.svc.Create(context.Background(), app.CreateParams{Name: "Acme", Domain: "acme", Owner: owner})
	require.Error(t, err)
	assert.ErrorIs(t, err, publishErr)
	assert.Contains(t, err.Error(), "failed to remove operino (4)")
}

func TestService_Get(t *testing.T) {
	f := newFixture(true)
	f.operinos.On("FindByID", mock.Anything, int64(5)).Return(&operino.Operino{ID: 5}, nil)
	f.operinos.On("FindByID", mock.Anything, int64(6)).Return(nil, operino.ErrOperinoNotFound)

	o, err := f.svc.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), o.ID)

	_, err = f.svc.Get(context.Background(), 6)
	assert.ErrorIs(t, err, operino.ErrOperinoNotFound)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()
	f.operinos.On("FindByID", mock.Anything, int64(5)).Return(&operino.Operino{ID: 5, Domain: "acme"}, nil)
	f.operinos.On("Delete", mock.Anything, int64(5)).Return(nil)

	var recorded *operation.Operation
	f.operations.On("Create", mock.Anything, mock.AnythingOfType("*operation.Operation")).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*operation.Operation) }).
		Return(int64(77), nil)
	f.operations.On("Update", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Delete(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(77), res.OperationID)
	assert.Equal(t, []string{"acme"}, f.cdr.Args(cdrfake.TruncateDomain))

	require.NotNil(t, recorded)
	assert.Equal(t, operation.OpOperinoDeprovision, recorded.Type)
	assert.Equal(t, operation.StatusCompleted, recorded.Status)
	assert.Equal(t, true, recorded.Result["truncated"])
	assert.Equal(t, 1, f.metrics.deprovisioned)
	f.operinos.AssertExpectations(t)
}

func TestService_Delete_TruncateFailureKeepsRecord(t *testing.T) {
	f := newFixture(true)
	f.cdr.FailOn = func(c cdrfake.Call) error {
		if c.Method == cdrfake.TruncateDomain {
			return &cdr.ExternalServiceError{Op: "truncate domain", StatusCode: 500}
		}
		return nil
	}
	f.operinos.On("FindByID", mock.Anything, int64(5)).Return(&operino.Operino{ID: 5, Domain: "acme"}, nil)

	var recorded *operation.Operation
	f.operations.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*operation.Operation) }).
		Return(int64(78), nil)
	f.operations.On("Update", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Delete(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, cdr.IsExternal(err))

	f.operinos.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Equal(t, operation.StatusFailed, recorded.Status)
	assert.Equal(t, app.StageTruncate, recorded.Result["failed_stage"])
	assert.True(t, recorded.IsRetryable())
	assert.Equal(t, []string{app.StageTruncate}, f.metrics.deprovisionFailures)
}

func TestService_Delete_RecordFailureAfterTruncate(t *testing.T) {
	f := newFixture(true)
	f.operinos.On("FindByID", mock.Anything, int64(5)).Return(&operino.Operino{ID: 5, Domain: "acme"}, nil)
	f.operinos.On("Delete", mock.Anything, int64(5)).Return(errors.New("db down"))

	var recorded *operation.Operation
	f.operations.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*operation.Operation) }).
		Return(int64(79), nil)
	f.operations.On("Update", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Delete(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, app.StageDelete, recorded.Result["failed_stage"])
	assert.False(t, recorded.IsRetryable(), "domain data is already gone")
}

func TestService_Delete_NotFound(t *testing.T) {
	f := newFixture(true)
	f.operinos.On("FindByID", mock.Anything, int64(9)).Return(nil, operino.ErrOperinoNotFound)

	_, err := f.svc.Delete(context.Background(), 9)
	assert.ErrorIs(t, err, operino.ErrOperinoNotFound)
	assert.Zero(t, f.cdr.Count(cdrfake.TruncateDomain))
	f.operations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGeneratePassword(t *testing.T) {
	pw, err := app.GeneratePassword()
	require.NoError(t, err)
	assert.Len(t, pw, 12)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, pw)
}
