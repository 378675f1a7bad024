// Package discovery maintains the cluster's worker membership directory in
// etcd, backing the agent facade's WorkerInfo/self_worker lookups. Client
// construction, lease reuse, and watch-driven cache refresh are grounded on
// the teacher repository's etcd-backed store implementation, narrowed from
// a generic versioned KV store down to this single concern.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-prometheus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"

	"github.com/igorsyl/rref/agent"
	"github.com/igorsyl/rref/cache"
	"github.com/igorsyl/rref/cache/inmemory"
	"github.com/igorsyl/rref/errors"
	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/log"
	"github.com/igorsyl/rref/tls"
)

const (
	dialTimeout     = 10 * time.Second
	keepAliveTime   = 30 * time.Second
	keepAliveWait   = 20 * time.Second
	registerTTL     = 15 * time.Second
	cacheTTL        = registerTTL * 2
	defaultPrefix   = "/rref/workers/"
	cacheNamespace  = "discovery-workers"
)

// Options configures a Directory.
type Options struct {
	Endpoints []string
	Prefix    string // defaults to defaultPrefix
	TLS       *tls.DynamicTLSConfigOptions
}

// Directory is the etcd-backed cluster worker membership directory.
type Directory struct {
	client *clientv3.Client
	prefix string
	cache  cache.Cache

	self    agent.WorkerInfo
	leaseID clientv3.LeaseID
}

// NewDirectory dials etcd and returns a Directory ready for Register/Lookup.
// Call Watch in a goroutine to keep the local cache warm as peers join and
// leave.
func NewDirectory(ctx context.Context, opts Options) (*Directory, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	dialOpts := []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(grpcprom.UnaryClientInterceptor),
		grpc.WithChainStreamInterceptor(grpcprom.StreamClientInterceptor),
	}

	cfg := clientv3.Config{
		Endpoints:            opts.Endpoints,
		DialTimeout:          dialTimeout,
		DialKeepAliveTime:    keepAliveTime,
		DialKeepAliveTimeout: keepAliveWait,
		DialOptions:          dialOpts,
	}
	if opts.TLS != nil {
		tlsCfg, err := tls.NewDynamicTLSConfig(ctx, opts.TLS)
		if err != nil {
			return nil, fmt.Errorf("discovery: building tls config: %w", err)
		}
		cfg.TLS = tlsCfg
	}

	cli, err := clientv3.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: dialing etcd: %w", err)
	}

	return &Directory{
		client: cli,
		prefix: prefix,
		cache:  inmemory.New(&inmemory.Options{TTLCleanInterval: time.Minute}),
	}, nil
}

// Register publishes self under a leased etcd key and starts a keep-alive
// loop for the lease, grounded on the teacher's lease-reuse idiom: a fresh
// lease is granted for registerTTL and kept alive until ctx is done.
func (d *Directory) Register(ctx context.Context, self agent.WorkerInfo) error {
	log := log.FromContext(ctx).WithValues("worker", self.ID)

	lease, err := d.client.Grant(ctx, int64(registerTTL.Seconds()))
	if err != nil {
		return fmt.Errorf("discovery: granting lease: %w", err)
	}
	d.self = self
	d.leaseID = lease.ID

	data, err := json.Marshal(self)
	if err != nil {
		return fmt.Errorf("discovery: marshalling worker info: %w", err)
	}
	if _, err := d.client.Put(ctx, d.key(self.ID), string(data), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("discovery: publishing worker info: %w", err)
	}

	keepAlive, err := d.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("discovery: starting lease keepalive: %w", err)
	}
	go func() {
		for {
			select {
			case _, ok := <-keepAlive:
				if !ok {
					log.Info("etcd lease keepalive channel closed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Watch follows the worker prefix and refreshes the local cache as workers
// register, re-register, or expire. Blocks until ctx is done or the watch
// channel closes; run it in its own goroutine.
func (d *Directory) Watch(ctx context.Context) error {
	log := log.FromContext(ctx)
	watch := d.client.Watch(clientv3.WithRequireLeader(ctx), d.prefix, clientv3.WithPrefix())
	for resp := range watch {
		if err := resp.Err(); err != nil {
			return fmt.Errorf("discovery: watch error: %w", err)
		}
		for _, ev := range resp.Events {
			workerKey := string(ev.Kv.Key)
			switch {
			case ev.Type == clientv3.EventTypeDelete:
				d.cache.Delete(ctx, workerKey, cache.DeleteOptions{Namespace: cacheNamespace})
			default:
				if err := d.cache.Set(ctx, workerKey, ev.Kv.Value, cache.SetOptions{Namespace: cacheNamespace, TTL: cacheTTL}); err != nil {
					log.Error(err, "failed to refresh worker cache entry", "key", workerKey)
				}
			}
		}
	}
	return ctx.Err()
}

// Lookup resolves worker's address, checking the cache before falling back
// to a direct etcd read.
func (d *Directory) Lookup(worker id.WorkerID) (agent.WorkerInfo, error) {
	ctx := context.Background()
	key := d.key(worker)

	if data, err := d.cache.Get(ctx, key, cache.GetOptions{Namespace: cacheNamespace}); err == nil {
		var info agent.WorkerInfo
		if jsonErr := json.Unmarshal(data, &info); jsonErr == nil {
			return info, nil
		}
	}

	resp, err := d.client.Get(ctx, key)
	if err != nil {
		return agent.WorkerInfo{}, fmt.Errorf("discovery: looking up worker %d: %w", worker, err)
	}
	if len(resp.Kvs) == 0 {
		return agent.WorkerInfo{}, errors.NewNotFound("worker", worker.String())
	}
	var info agent.WorkerInfo
	if err := json.Unmarshal(resp.Kvs[0].Value, &info); err != nil {
		return agent.WorkerInfo{}, fmt.Errorf("discovery: decoding worker info: %w", err)
	}
	_ = d.cache.Set(ctx, key, resp.Kvs[0].Value, cache.SetOptions{Namespace: cacheNamespace, TTL: cacheTTL})
	return info, nil
}

// Self returns the WorkerInfo this Directory registered, satisfying
// agent.WorkerResolver.
func (d *Directory) Self() (agent.WorkerInfo, error) {
	if d.self.ID == 0 && d.self.Address == "" {
		return agent.WorkerInfo{}, errors.NewConflict("discovery", "self", fmt.Errorf("directory has not registered a self worker yet"))
	}
	return d.self, nil
}

// Close releases the etcd client.
func (d *Directory) Close() error {
	return d.client.Close()
}

func (d *Directory) key(worker id.WorkerID) string {
	return fmt.Sprintf("%s%d", d.prefix, worker)
}
