package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

var (
	ErrConcurrentRun = errors.New("concurrent_run_rejected")
	ErrRunNotActive  = errors.New("run not active")
)

type Connections interface {
	Connection(id string) (domain.Connection, bool)
	Connections() []domain.Connection
}

type Controller interface {
	RunSync(ctx context.Context, connectionID string) (*Handle, error)
	Cancel(ctx context.Context, runID string) error
	Status(ctx context.Context, runID string) (domain.Run, error)
}

// Handle follows one started run.
type Handle struct {
	RunID        string
	ConnectionID string

	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result blocks until the run ends.
func (h *Handle) Result() Result {
	<-h.done
	return h.result
}

func (h *Handle) Cancel() {
	h.cancel()
}

func (h *Handle) finish(res Result) {
	h.result = res
	close(h.done)
}

type runDescriptor struct {
	handle *Handle
	runner *Runner
}

type DefaultController struct {
	connections Connections
	deps        Dependencies
	newID       func() string
	now         func() time.Time

	mu     sync.Mutex
	active map[string]runDescriptor // by connection id
}

func NewController(connections Connections, deps Dependencies) *DefaultController {
	return &DefaultController{
		connections: connections,
		deps:        deps,
		newID:       uuid.NewString,
		now:         time.Now,
		active:      make(map[string]runDescriptor),
	}
}

// Init marks runs left unfinished by a previous process as failed.
func (ctrl *DefaultController) Init(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	for _, conn := range ctrl.connections.Connections() {
		runs, err := ctrl.deps.Runs.ListRuns(ctx, conn.ID)
		if err != nil {
			return err
		}
		for _, run := range runs {
			if run.Status.Terminal() {
				continue
			}
			finishedAt := ctrl.now().UTC()
			msg := "interrupted by restart"
			run.Status = domain.RunStatusFailed
			run.FinishedAt = &finishedAt
			run.ErrorCode = CodeInternal
			run.Error = &msg
			if err := ctrl.deps.Runs.SaveRun(ctx, run); err != nil {
				return err
			}
			logger.Warn().Str("run_id", run.ID).Str("connection", conn.ID).Msg("marked interrupted run as failed")
		}
	}
	return nil
}

// RunSync starts a run for the connection and returns without waiting for
// it. At most one run per connection is active at a time.
func (ctrl *DefaultController) RunSync(ctx context.Context, connectionID string) (*Handle, error) {
	conn, ok := ctrl.connections.Connection(connectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connectionID)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	if desc, busy := ctrl.active[conn.ID]; busy {
		return nil, fmt.Errorf("%w: run %s is active for connection %s", ErrConcurrentRun, desc.handle.RunID, conn.ID)
	}

	run := domain.Run{
		ID:           ctrl.newID(),
		ConnectionID: conn.ID,
		Status:       domain.RunStatusPending,
		StartedAt:    ctrl.now().UTC(),
	}
	if err := ctrl.deps.Runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	// The run outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &Handle{
		RunID:        run.ID,
		ConnectionID: conn.ID,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	runner := NewRunner(run, conn, ctrl.deps)
	runner.now = ctrl.now
	ctrl.active[conn.ID] = runDescriptor{handle: handle, runner: runner}

	go func() {
		defer cancel()
		res := runner.Run(runCtx)
		ctrl.release(conn.ID, run.ID)
		handle.finish(res)
	}()

	return handle, nil
}

func (ctrl *DefaultController) Cancel(_ context.Context, runID string) error {
	ctrl.mu.Lock()
	desc, ok := ctrl.find(runID)
	ctrl.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	desc.handle.Cancel()
	<-desc.handle.Done()
	return nil
}

// Status reports an active run from memory and a finished one from the run
// store.
func (ctrl *DefaultController) Status(ctx context.Context, runID string) (domain.Run, error) {
	ctrl.mu.Lock()
	desc, ok := ctrl.find(runID)
	ctrl.mu.Unlock()

	if ok {
		return desc.runner.Current(), nil
	}
	return ctrl.deps.Runs.GetRun(ctx, runID)
}

func (ctrl *DefaultController) find(runID string) (runDescriptor, bool) {
	for _, desc := range ctrl.active {
		if desc.handle.RunID == runID {
			return desc, true
		}
	}
	return runDescriptor{}, false
}

func (ctrl *DefaultController) release(connectionID, runID string) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	if desc, ok := ctrl.active[connectionID]; ok && desc.handle.RunID == runID {
		delete(ctrl.active, connectionID)
	}
}
