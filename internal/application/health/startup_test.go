package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/operino-hub/internal/domain/patient"
	"github.com/ahrav/operino-hub/internal/test/cdrfake"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

type MockHealthMetrics struct{ mock.Mock }

func (m *MockHealthMetrics) SetSystemHealth(ctx context.Context, healthy bool) { m.Called(ctx, healthy) }

type MockLoader struct{ mock.Mock }

func (m *MockLoader) Load(ctx context.Context, count int) []patient.Patient {
	return m.Called(ctx, count).Get(0).([]patient.Patient)
}

func TestStartup(t *testing.T) {
	patients := []patient.Patient{{NHSNumber: "1"}, {NHSNumber: "2"}}

	tests := []struct {
		name    string
		failErr error
		healthy bool
	}{
		{"reachable", nil, true},
		{"unreachable", errors.New("connection refused"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := cdrfake.New()
			client.FailOn = func(cdrfake.Call) error { return tc.failErr }
			metrics := new(MockHealthMetrics)
			metrics.On("SetSystemHealth", mock.Anything, tc.healthy).Return().Once()
			loader := new(MockLoader)
			loader.On("Load", mock.Anything, 5).Return(patients).Once()

			c := NewChecker(client, loader, 5, metrics, logger.Noop(), noop.NewTracerProvider().Tracer("test"))
			res := c.Startup(context.Background())

			assert.Equal(t, tc.healthy, res.Healthy)
			assert.Equal(t, patients, res.Patients, "patients are loaded even when the repository is down")
			assert.Equal(t, 1, client.Count(cdrfake.ListDomains))
			metrics.AssertExpectations(t)
			loader.AssertExpectations(t)
		})
	}
}
