package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/operino-hub/internal/application/workflow"
	"github.com/ahrav/operino-hub/internal/domain/operino"
	"github.com/ahrav/operino-hub/pkg/common/logger"
	"github.com/ahrav/operino-hub/pkg/common/timeutil"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	args := m.Called(ctx, queue, body)
	return args.Error(0)
}

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newDispatcher(pub *MockPublisher) *Dispatcher {
	return NewDispatcher(pub, Config{
		Queue:            "notifications",
		BaseURL:          "https://cdr.example.com",
		ExplorerURL:      "https://explorer.example.com",
		SubjectNamespace: "uk.nhs.nhs_number",
	}, timeutil.NewMock(now), logger.Noop(), noop.NewTracerProvider().Tracer("test"))
}

func outcome(state workflow.State, err error) workflow.Outcome {
	return workflow.Outcome{
		Task: operino.ProvisioningTask{
			ID:        "task-1",
			OperinoID: 9,
			Name:      `Clinic "42"`,
			Domain:    "clinic42",
			Owner:     operino.Owner{Login: "jdoe", Email: "jdoe@example.com", FirstName: "Jane", LastName: "Doe"},
			User:      operino.DomainUser{Username: "jdoe_clinic42", Password: `p"w\`},
			Provision: true,
		},
		State:   state,
		Err:     err,
		Seeding: workflow.SeedingReport{Seeded: 15},
	}
}

func TestBuild_Success(t *testing.T) {
	d := newDispatcher(&MockPublisher{})

	n := d.Build(context.Background(), outcome(workflow.StateComplete, nil))

	assert.Equal(t, operino.NotificationSuccess, n.Status)
	assert.Equal(t, "jdoe@example.com", n.Recipient)
	assert.Equal(t, "clinic42", n.Config["domain"])
	assert.Equal(t, now, n.CreatedAt)
	assert.NotEmpty(t, n.ID)
	require.Len(t, n.Attachments, 2)

	postman := n.Attachments[0]
	assert.Equal(t, "postman.json", postman.Name)
	require.True(t, gjson.ValidBytes(postman.Content), string(postman.Content))
	assert.Equal(t, `Operino Clinic "42"`, gjson.GetBytes(postman.Content, "info.name").String())
	assert.Equal(t, `p"w\`, gjson.GetBytes(postman.Content, "auth.basic.1.value").String())
	assert.Equal(t, "https://cdr.example.com", gjson.GetBytes(postman.Content, "variable.0.value").String())

	md := string(n.Attachments[1].Content)
	assert.Equal(t, "workspace.md", n.Attachments[1].Name)
	assert.Contains(t, md, "| Domain | clinic42 |")
	assert.Contains(t, md, "https://explorer.example.com")
	assert.Contains(t, md, "15 synthetic patients")
}

func TestBuild_Failure(t *testing.T) {
	d := newDispatcher(&MockPublisher{})

	n := d.Build(context.Background(), outcome(workflow.StateFailed, errors.New("step create-domain failed: conflict")))

	assert.Equal(t, operino.NotificationFailure, n.Status)
	assert.Equal(t, "step create-domain failed: conflict", n.Error)
	assert.Nil(t, n.Config, "credentials are only sent for provisioned domains")
	assert.Empty(t, n.Attachments)
}

func TestBuild_AttachmentFailureDegrades(t *testing.T) {
	d := newDispatcher(&MockPublisher{})
	d.render = func(attachmentData) ([]operino.Attachment, error) {
		return nil, errors.New("generated postman collection is not valid json")
	}

	n := d.Build(context.Background(), outcome(workflow.StateComplete, nil))

	assert.Equal(t, operino.NotificationSuccess, n.Status)
	assert.NotEmpty(t, n.Config)
	assert.Empty(t, n.Attachments)
}

func TestDispatch_Publishes(t *testing.T) {
	pub := &MockPublisher{}
	var published []byte
	pub.On("Publish", mock.Anything, "notifications", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()

	require.NoError(t, newDispatcher(pub).Dispatch(context.Background(), outcome(workflow.StateComplete, nil)))
	pub.AssertExpectations(t)

	var n operino.Notification
	require.NoError(t, json.Unmarshal(published, &n))
	assert.Equal(t, operino.NotificationSuccess, n.Status)
	assert.Equal(t, int64(9), n.OperinoID)
	assert.Len(t, n.Attachments, 2)
}

func TestDispatch_PublishError(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, "notifications", mock.Anything).Return(errors.New("broker down"))

	err := newDispatcher(pub).Dispatch(context.Background(), outcome(workflow.StateFailed, errors.New("x")))
	assert.ErrorContains(t, err, "broker down")
}
