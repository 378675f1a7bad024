// Command rrefnode runs a single peer-to-peer node of the reference
// tracking cluster: it registers itself in the shared worker directory,
// accepts peer websocket connections, and dispatches inbound wire messages
// into the process-wide tracker singleton.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/igorsyl/rref/agent"
	"github.com/igorsyl/rref/config"
	"github.com/igorsyl/rref/discovery"
	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/log"
	"github.com/igorsyl/rref/pprof"
	"github.com/igorsyl/rref/rand"
	"github.com/igorsyl/rref/retry"
	"github.com/igorsyl/rref/tls"
	"github.com/igorsyl/rref/tracker"
	"github.com/igorsyl/rref/version"
	"github.com/igorsyl/rref/wire"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := NewDefaultOptions()
	fs := pflag.NewFlagSet("rrefnode", pflag.ExitOnError)
	config.RegisterFlags(fs, "", opts)
	if err := config.Parse(fs); err != nil {
		log.Error(err, "failed to parse configuration")
		os.Exit(1)
	}

	if err := run(ctx, opts); err != nil {
		log.Error(err, "rrefnode exited")
		os.Exit(1)
	}
}

// lazyDispatcher breaks the construction cycle between agent.WebSocketAgent
// (needs a Dispatcher up front) and tracker.Tracker (needs the Agent up
// front): the agent is built first against this adapter, and t is filled in
// once the tracker exists.
type lazyDispatcher struct {
	t *tracker.Tracker
}

func (l *lazyDispatcher) Dispatch(ctx context.Context, from id.WorkerID, m wire.Message) (*wire.Message, error) {
	return l.t.Dispatch(ctx, from, m)
}

func run(ctx context.Context, opts *Options) error {
	self := opts.WorkerID()
	info := version.Get()
	log.FromContext(ctx).Info("starting rrefnode", "worker", self, "version", info.GitVersion, "goVersion", info.GoVersion)

	dir, err := discovery.NewDirectory(ctx, discovery.Options{
		Endpoints: opts.Etcd.Endpoints,
		Prefix:    opts.Etcd.Prefix,
		TLS:       opts.TLS,
	})
	if err != nil {
		return fmt.Errorf("rrefnode: opening discovery directory: %w", err)
	}
	defer dir.Close()

	selfAddr := opts.ListenAddress
	// Suffix the directory display name so that running several rrefnode
	// processes for the same worker id during local testing doesn't
	// produce indistinguishable directory entries.
	selfName := fmt.Sprintf("%s-%s", self, rand.RandomAlphaNumeric(6))

	registerCtx, cancelRegister := context.WithTimeout(ctx, 2*time.Minute)
	defer cancelRegister()
	if err := retry.OnError(registerCtx, func(ctx context.Context) error {
		return dir.Register(ctx, agent.WorkerInfo{ID: self, Name: selfName, Address: selfAddr})
	}); err != nil {
		return fmt.Errorf("rrefnode: registering in directory: %w", err)
	}

	tlsConfig, err := tls.NewDynamicTLSConfig(ctx, opts.TLS)
	if err != nil {
		return fmt.Errorf("rrefnode: building tls config: %w", err)
	}

	disp := &lazyDispatcher{}
	dialer := websocket.Dialer{TLSClientConfig: tlsConfig}
	wsAgent := agent.NewWebSocketAgent(self, dir, disp, dialer)

	if err := tracker.Init(ctx, self, wsAgent); err != nil {
		return fmt.Errorf("rrefnode: initializing tracker: %w", err)
	}
	trk, err := tracker.Instance()
	if err != nil {
		return err
	}
	disp.t = trk

	mux := http.NewServeMux()
	mux.HandleFunc("/rref", func(w http.ResponseWriter, r *http.Request) {
		handlePeerConn(ctx, wsAgent, w, r)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(trk.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:        selfAddr,
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dir.Watch(gctx)
	})
	group.Go(func() error {
		return wsAgent.RunReconnectLoop(gctx)
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		log.FromContext(ctx).Info("listening for peers", "addr", selfAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if opts.EnablePProf {
		group.Go(func() error {
			return pprof.Run(gctx)
		})
	}
	return group.Wait()
}

func handlePeerConn(ctx context.Context, wsAgent *agent.WebSocketAgent, w http.ResponseWriter, r *http.Request) {
	peer := r.URL.Query().Get("worker")
	if peer == "" {
		http.Error(w, "missing worker query parameter", http.StatusBadRequest)
		return
	}
	var workerNum uint16
	if _, err := fmt.Sscanf(peer, "%d", &workerNum); err != nil {
		http.Error(w, "invalid worker id", http.StatusBadRequest)
		return
	}
	conn, err := agent.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.FromContext(ctx).Error(err, "websocket upgrade failed")
		return
	}
	wsAgent.ServeConn(ctx, id.WorkerID(workerNum), conn)
}
