package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/api"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/services/accuracy"
	"github.com/de-tools/inventory-atlas/pkg/services/workflow"
	"github.com/de-tools/inventory-atlas/pkg/store/memory"
)

type mockController struct {
	mock.Mock
}

func (m *mockController) RunSync(ctx context.Context, connectionID string) (*workflow.Handle, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Handle), args.Error(1)
}

func (m *mockController) Cancel(ctx context.Context, runID string) error {
	return m.Called(ctx, runID).Error(0)
}

func (m *mockController) Status(ctx context.Context, runID string) (domain.Run, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(domain.Run), args.Error(1)
}

func TestWebAPI_Endpoints(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	ctrl := new(mockController)
	store := memory.NewStore()
	require.NoError(t, store.Save(context.Background(), domain.Snapshot{
		RunID:        "run-1",
		ConnectionID: "prod",
		Provider:     domain.ProviderAWS,
		Currency:     "USD",
		CreatedAt:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Totals: domain.Totals{
			ByType: map[domain.ResourceType]decimal.Decimal{domain.ResourceBlockVolume: decimal.RequireFromString("5121.15")},
			Counts: map[domain.ResourceType]int{domain.ResourceBlockVolume: 3},
			Grand:  decimal.RequireFromString("5121.15"),
		},
	}))

	router := ConfigureRouter(logger, Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		Dependencies: Dependencies{
			Controller: ctrl,
			Snapshots:  store,
			Reconciler: accuracy.NewService(store, store, nil, nil),
		},
	})
	testServer := httptest.NewServer(router)
	defer testServer.Close()

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		setupMocks     func()
		expectedStatus int
		expected       interface{}
		parseResponse  func([]byte) (interface{}, error)
	}{
		{
			name:   "StartSync",
			method: http.MethodPost,
			path:   "/api/v1/connections/prod/sync",
			setupMocks: func() {
				ctrl.On("RunSync", mock.Anything, "prod").
					Return(&workflow.Handle{RunID: "run-2", ConnectionID: "prod"}, nil).Once()
			},
			expectedStatus: http.StatusAccepted,
			expected:       api.SyncResponse{RunID: "run-2", ConnectionID: "prod"},
			parseResponse:  unmarshalResponse[api.SyncResponse](),
		},
		{
			name:   "StartSync_Concurrent",
			method: http.MethodPost,
			path:   "/api/v1/connections/prod/sync",
			setupMocks: func() {
				ctrl.On("RunSync", mock.Anything, "prod").
					Return(nil, workflow.ErrConcurrentRun).Once()
			},
			expectedStatus: http.StatusConflict,
			expected:       api.Error{Code: api.CodeConcurrentRunRejected, Message: "concurrent_run_rejected"},
			parseResponse:  unmarshalResponse[api.Error](),
		},
		{
			name:           "LatestSnapshot_Unknown",
			method:         http.MethodGet,
			path:           "/api/v1/connections/staging/snapshots/latest",
			setupMocks:     func() {},
			expectedStatus: http.StatusNotFound,
			expected:       api.CodeNotFound,
			parseResponse: func(data []byte) (interface{}, error) {
				var e api.Error
				err := json.Unmarshal(data, &e)
				return e.Code, err
			},
		},
		{
			name:           "Accuracy",
			method:         http.MethodPost,
			path:           "/api/v1/snapshots/run-1/accuracy",
			body:           `{"actual":"5402.27"}`,
			setupMocks:     func() {},
			expectedStatus: http.StatusOK,
			expected:       "94.80",
			parseResponse: func(data []byte) (interface{}, error) {
				var r api.AccuracyReport
				err := json.Unmarshal(data, &r)
				return r.AccuracyPercent, err
			},
		},
		{
			name:           "Health",
			method:         http.MethodGet,
			path:           "/healthz",
			setupMocks:     func() {},
			expectedStatus: http.StatusOK,
			expected:       "",
			parseResponse: func(data []byte) (interface{}, error) {
				return string(data), nil
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMocks()
			req, err := http.NewRequest(tc.method, testServer.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "Failed to send request")
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "Status code mismatch")

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "Failed to read response body")

			actual, err := tc.parseResponse(body)
			require.NoError(t, err, "Failed to parse response")

			assert.Equal(t, tc.expected, actual)
		})
	}
	ctrl.AssertExpectations(t)
}

func unmarshalResponse[T any]() func([]byte) (interface{}, error) {
	return func(data []byte) (interface{}, error) {
		var response T
		err := json.Unmarshal(data, &response)
		return response, err
	}
}
