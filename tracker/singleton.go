package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/igorsyl/rref/agent"
	"github.com/igorsyl/rref/errors"
	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/log"
)

var (
	instanceMu sync.Mutex
	singleton  *Tracker
)

// Init installs the process-wide tracker singleton. Fails if already
// initialized or if a is nil. Lifetime equals process lifetime; there is no
// teardown.
func Init(ctx context.Context, self id.WorkerID, a agent.Agent) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if singleton != nil {
		return errors.NewConflict("tracker", "singleton", fmt.Errorf("already initialized"))
	}
	if a == nil {
		return errors.NewBadRequest("tracker: init requires a non-nil agent")
	}
	singleton = New(self, a)
	log.FromContext(ctx).Info("tracker initialized", "worker", self)
	return nil
}

// Instance returns the process-wide tracker singleton. Fails if Init has
// not been called yet.
func Instance() (*Tracker, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if singleton == nil {
		return nil, errors.NewConflict("tracker", "singleton", fmt.Errorf("not initialized"))
	}
	return singleton, nil
}

// resetForTest clears the singleton; only intended for use from this
// package's own tests, which exercise Init/Instance repeatedly.
func resetForTest() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	singleton = nil
}
