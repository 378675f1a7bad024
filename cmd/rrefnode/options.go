package main

import (
	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/tls"
)

// Options is the flat configuration surface for a single rrefnode process,
// loaded by config.Parse from flag/env/default in that priority order.
type Options struct {
	Worker        uint16                       `json:"worker" description:"this node's worker id, unique within the cluster"`
	ListenAddress string                       `json:"listenAddress" description:"address to listen for peer websocket connections and metrics"`
	Etcd          EtcdOptions                  `json:"etcd"`
	TLS           *tls.DynamicTLSConfigOptions `json:"tls"`
	EnablePProf   bool                         `json:"enablePprof" description:"serve pprof handlers alongside the peer listener"`
}

type EtcdOptions struct {
	Endpoints []string `json:"endpoints" description:"etcd endpoints backing the worker discovery directory"`
	Prefix    string   `json:"prefix" description:"etcd key prefix for worker registration"`
}

// NewDefaultOptions returns the zero-value-safe defaults registered as
// flags before config.Parse overlays env and command-line values.
func NewDefaultOptions() *Options {
	return &Options{
		ListenAddress: ":8443",
		Etcd: EtcdOptions{
			Endpoints: []string{"127.0.0.1:2379"},
			Prefix:    "/rref/workers/",
		},
		TLS: &tls.DynamicTLSConfigOptions{},
	}
}

func (o *Options) WorkerID() id.WorkerID {
	return id.WorkerID(o.Worker)
}
