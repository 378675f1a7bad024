package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/igorsyl/rref/controller"
	"github.com/igorsyl/rref/errors"
	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/log"
	"github.com/igorsyl/rref/wire"
)

// WorkerResolver looks up cluster membership, backing WorkerInfo/SelfWorker.
// discovery.Directory satisfies this; declared here (not imported) to avoid
// a dependency cycle symmetric with Dispatcher above.
type WorkerResolver interface {
	Lookup(worker id.WorkerID) (WorkerInfo, error)
	Self() (WorkerInfo, error)
}

type envelope struct {
	MessageID uuid.UUID
	Reply     bool
	Body      []byte
}

// WebSocketAgent keeps one duplex websocket connection per peer worker and
// dispatches inbound frames to a local Dispatcher, grounded on
// httpclient.GetWebSocketOptions's dialer/keepalive/read-loop shape.
type WebSocketAgent struct {
	self     id.WorkerID
	resolver WorkerResolver
	target   Dispatcher
	dialer   websocket.Dialer

	mu    sync.Mutex
	conns map[id.WorkerID]*peerConn

	reconnect controller.TypedQueue[id.WorkerID]
	metrics   *metrics
}

type peerConn struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uuid.UUID]*Future
	pendmu  sync.Mutex
}

// NewWebSocketAgent constructs an agent for worker self. dialer carries the
// TLS configuration (e.g. from tls.NewDynamicTLSConfig); target handles
// inbound messages (normally *tracker.Tracker).
func NewWebSocketAgent(self id.WorkerID, resolver WorkerResolver, target Dispatcher, dialer websocket.Dialer) *WebSocketAgent {
	return &WebSocketAgent{
		self:      self,
		resolver:  resolver,
		target:    target,
		dialer:    dialer,
		conns:     map[id.WorkerID]*peerConn{},
		reconnect: controller.NewDefaultTypedQueue[id.WorkerID]("agent-reconnect", nil),
		metrics:   newMetrics(self),
	}
}

// Registry exposes the agent's private prometheus registry for a scrape
// handler to serve.
func (a *WebSocketAgent) Registry() *prometheus.Registry {
	return a.metrics.registry
}

// RunReconnectLoop drains peers queued by a dropped read loop and redials
// them with the queue's rate limiter backing off between attempts. Blocks
// until ctx is done; run it in its own goroutine.
func (a *WebSocketAgent) RunReconnectLoop(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		a.reconnect.ShutDown()
	}()
	for {
		peer, shutdown := a.reconnect.Get()
		if shutdown {
			return ctx.Err()
		}
		if _, err := a.connFor(ctx, peer); err != nil {
			log.FromContext(ctx).Error(err, "reconnect attempt failed, will retry", "peer", peer)
			a.reconnect.AddRateLimited(peer)
		} else {
			a.reconnect.Forget(peer)
		}
		a.reconnect.Done(peer)
	}
}

func (a *WebSocketAgent) Send(ctx context.Context, dst id.WorkerID, m wire.Message) (*Future, error) {
	pc, err := a.connFor(ctx, dst)
	if err != nil {
		return nil, err
	}
	msgID := uuid.New()
	future := NewFuture()

	pc.pendmu.Lock()
	pc.pending[msgID] = future
	pc.pendmu.Unlock()
	a.metrics.addPendingFutures(1)

	env := envelope{MessageID: msgID, Body: wire.Encode(m)}
	if err := pc.writeEnvelope(env); err != nil {
		pc.pendmu.Lock()
		delete(pc.pending, msgID)
		pc.pendmu.Unlock()
		a.metrics.addPendingFutures(-1)
		a.metrics.incResolution(err)
		return nil, err
	}
	a.metrics.incSent(m.Kind)
	return future, nil
}

func (a *WebSocketAgent) WorkerInfo(worker id.WorkerID) (WorkerInfo, error) {
	return a.resolver.Lookup(worker)
}

func (a *WebSocketAgent) SelfWorker() (WorkerInfo, error) {
	return a.resolver.Self()
}

// Upgrader upgrades an inbound HTTP request to a websocket connection for
// ServeConn. Callers own the *http.Server; this only wraps the handshake.
var Upgrader = websocket.Upgrader{}

// ServeConn adopts an already-upgraded connection from peer as that peer's
// duplex channel, replacing any existing one, and starts its read loop.
// Pair with an http.Handler that upgrades the request and reads the caller's
// worker id (e.g. from a query parameter) before calling this.
func (a *WebSocketAgent) ServeConn(ctx context.Context, peer id.WorkerID, conn *websocket.Conn) {
	pc := &peerConn{conn: conn, pending: map[uuid.UUID]*Future{}}
	a.mu.Lock()
	if old, ok := a.conns[peer]; ok {
		old.conn.Close()
	}
	a.conns[peer] = pc
	a.mu.Unlock()
	a.readLoop(ctx, peer, pc)
}

func (a *WebSocketAgent) connFor(ctx context.Context, dst id.WorkerID) (*peerConn, error) {
	a.mu.Lock()
	if pc, ok := a.conns[dst]; ok {
		a.mu.Unlock()
		return pc, nil
	}
	a.mu.Unlock()

	info, err := a.resolver.Lookup(dst)
	if err != nil {
		return nil, err
	}
	u := url.URL{Scheme: "ws", Host: info.Address, Path: "/rref", RawQuery: url.Values{"worker": {a.self.String()}}.Encode()}
	conn, _, err := a.dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		return nil, fmt.Errorf("agent: dial %s: %w", dst, err)
	}
	pc := &peerConn{conn: conn, pending: map[uuid.UUID]*Future{}}

	a.mu.Lock()
	a.conns[dst] = pc
	a.mu.Unlock()

	go a.readLoop(ctx, dst, pc)
	return pc, nil
}

func (pc *peerConn) writeEnvelope(env envelope) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.conn.WriteJSON(env)
}

func (a *WebSocketAgent) readLoop(ctx context.Context, peer id.WorkerID, pc *peerConn) {
	log := log.FromContext(ctx).WithValues("peer", peer)
	defer pc.conn.Close()
	for {
		var env envelope
		if err := pc.conn.ReadJSON(&env); err != nil {
			log.Error(err, "websocket read failed, dropping peer connection")
			a.mu.Lock()
			delete(a.conns, peer)
			a.mu.Unlock()
			a.reconnect.AddRateLimited(peer)
			return
		}
		if env.Reply {
			pc.pendmu.Lock()
			future, ok := pc.pending[env.MessageID]
			delete(pc.pending, env.MessageID)
			pc.pendmu.Unlock()
			if !ok {
				log.Info("reply for unknown message id, dropping", "messageID", env.MessageID)
				continue
			}
			a.metrics.addPendingFutures(-1)
			reply, err := wire.Decode(env.Body)
			if err != nil {
				a.metrics.incResolution(err)
				future.Resolve(wire.Message{}, err)
				continue
			}
			if reply.Kind == wire.Exception {
				err := errors.NewInternalError(fmt.Errorf("remote exception: %s", reply.Err))
				a.metrics.incResolution(err)
				future.Resolve(wire.Message{}, err)
				continue
			}
			a.metrics.incResolution(nil)
			future.Resolve(reply, nil)
			continue
		}
		go a.handleInbound(ctx, peer, pc, env)
	}
}

func (a *WebSocketAgent) handleInbound(ctx context.Context, peer id.WorkerID, pc *peerConn, env envelope) {
	log := log.FromContext(ctx).WithValues("peer", peer)
	m, err := wire.Decode(env.Body)
	if err != nil {
		log.Error(err, "failed to decode inbound message")
		return
	}
	reply, err := a.target.Dispatch(ctx, peer, m)
	var replyMsg wire.Message
	if err != nil {
		replyMsg = wire.NewException(err.Error())
	} else if reply != nil {
		replyMsg = *reply
	} else {
		replyMsg = wire.Message{}
	}
	out := envelope{MessageID: env.MessageID, Reply: true, Body: wire.Encode(replyMsg)}
	if err := pc.writeEnvelope(out); err != nil {
		log.Error(err, "failed to write reply envelope")
	}
}

// DefaultKeepAlive mirrors httpclient.GetWebSocketOptions's keepalive
// interval for agent connections that want a ping loop layered on top.
const DefaultKeepAlive = 30 * time.Second
