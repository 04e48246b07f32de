// Package serverapi is the client-side surface of the transfer server's
// RPC API: a typed proxy per server module forwarding "module.method"
// calls through a bridge, plus a websocket bridge implementation.
package serverapi

import (
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"sync"

	"e2eeserver/e2ee"
)

// Bridge carries a remote call to the server and returns its raw result.
type Bridge interface {
	CheckEnvAvailable() error
	WaitRemoteAPIReady(ctx context.Context) error
	CallRemoteAPI(ctx context.Context, module, method string, params []interface{}) (json.RawMessage, error)
}

// CallFunc invokes one remote method with positional params.
type CallFunc func(ctx context.Context, params ...interface{}) (json.RawMessage, error)

// Proxy builds per-module method tables over a bridge. Registering two
// modules under the same name is a programming error and fails
// immediately.
type Proxy struct {
	bridge      Bridge
	mu          sync.Mutex
	moduleNames map[string]bool
	methodCache map[string]CallFunc
}

func NewProxy(bridge Bridge) *Proxy {
	return &Proxy{
		bridge:      bridge,
		moduleNames: make(map[string]bool),
		methodCache: make(map[string]CallFunc),
	}
}

// CreateModule registers a named module exactly once and returns its
// proxy.
func (p *Proxy) CreateModule(name string) (*ModuleProxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.moduleNames[name] {
		return nil, e2ee.Errorf(e2ee.CodeDuplicateServiceName, "module name duplicated: %s", name)
	}
	p.moduleNames[name] = true
	return &ModuleProxy{proxy: p, name: name}, nil
}

// ModuleProxy hands out memoized callables for one remote module.
type ModuleProxy struct {
	proxy *Proxy
	name  string
}

// Method returns the callable for "module.method", creating it on first
// access and reusing it afterwards.
func (m *ModuleProxy) Method(method string) CallFunc {
	key := m.name + "." + method
	m.proxy.mu.Lock()
	defer m.proxy.mu.Unlock()
	if fn, ok := m.proxy.methodCache[key]; ok {
		return fn
	}
	fn := func(ctx context.Context, params ...interface{}) (json.RawMessage, error) {
		return m.proxy.callRemoteMethod(ctx, key, params...)
	}
	m.proxy.methodCache[key] = fn
	return fn
}

func (p *Proxy) callRemoteMethod(ctx context.Context, key string, params ...interface{}) (json.RawMessage, error) {
	if err := p.bridge.CheckEnvAvailable(); err != nil {
		return nil, err
	}

	// Yield once so pending work is not starved by a burst of calls.
	runtime.Gosched()

	if err := p.bridge.WaitRemoteAPIReady(ctx); err != nil {
		return nil, err
	}

	module, method, ok := strings.Cut(key, ".")
	if !ok {
		return nil, e2ee.Errorf(e2ee.CodeAPICallFailed, "malformed method key: %s", key)
	}
	return p.bridge.CallRemoteAPI(ctx, module, method, params)
}
