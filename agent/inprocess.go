package agent

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/igorsyl/rref/errors"
	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/wire"
)

// InProcessAgent routes messages directly between Dispatchers registered
// in the same process. It is the fixture tracker tests are built against,
// standing in for a real RPC transport. ShuffleDelivery lets a test exer-
// cise the non-FIFO delivery the protocol is designed to tolerate.
type InProcessAgent struct {
	self id.WorkerID

	mu      sync.RWMutex
	workers map[id.WorkerID]WorkerInfo
	targets map[id.WorkerID]Dispatcher

	metrics *metrics

	// ShuffleDelivery, when set, delivers messages via a short random
	// delay on their own goroutine instead of synchronously, so that
	// sends issued in program order may be processed out of order.
	ShuffleDelivery bool
}

// NewInProcessAgent constructs an agent for worker self. Register peers
// (including self) via RegisterWorker before use.
func NewInProcessAgent(self id.WorkerID) *InProcessAgent {
	return &InProcessAgent{
		self:    self,
		workers: map[id.WorkerID]WorkerInfo{},
		targets: map[id.WorkerID]Dispatcher{},
		metrics: newMetrics(self),
	}
}

// Registry exposes the agent's private prometheus registry for a scrape
// handler to serve.
func (a *InProcessAgent) Registry() *prometheus.Registry {
	return a.metrics.registry
}

// RegisterWorker makes worker reachable through this agent.
func (a *InProcessAgent) RegisterWorker(info WorkerInfo, d Dispatcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workers[info.ID] = info
	a.targets[info.ID] = d
}

func (a *InProcessAgent) Send(ctx context.Context, dst id.WorkerID, m wire.Message) (*Future, error) {
	a.mu.RLock()
	target, ok := a.targets[dst]
	a.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFound("worker", dst.String())
	}

	a.metrics.incSent(m.Kind)
	a.metrics.addPendingFutures(1)

	future := NewFuture()
	deliver := func() {
		defer a.metrics.addPendingFutures(-1)
		reply, err := target.Dispatch(ctx, a.self, m)
		if err != nil {
			a.metrics.incResolution(err)
			future.Resolve(wire.Message{}, err)
			return
		}
		a.metrics.incResolution(nil)
		if reply != nil {
			future.Resolve(*reply, nil)
			return
		}
		future.Resolve(wire.Message{}, nil)
	}

	if a.ShuffleDelivery {
		go func() {
			time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
			deliver()
		}()
	} else {
		deliver()
	}
	return future, nil
}

func (a *InProcessAgent) WorkerInfo(worker id.WorkerID) (WorkerInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	info, ok := a.workers[worker]
	if !ok {
		return WorkerInfo{}, errors.NewNotFound("worker", worker.String())
	}
	return info, nil
}

func (a *InProcessAgent) SelfWorker() (WorkerInfo, error) {
	return a.WorkerInfo(a.self)
}
