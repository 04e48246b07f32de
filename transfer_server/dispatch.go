package main

import (
	"encoding/json"
	"sync"

	"e2eeserver/e2ee"
	"e2eeserver/types"
)

// apiModule is a server-exposed RPC surface. CallMethod must verify the
// method against the module's own capability table before invoking it.
type apiModule interface {
	CallMethod(method string, params []json.RawMessage, caller *Client) (interface{}, error)
}

type moduleFactory func() (apiModule, error)

type moduleEntry struct {
	once   sync.Once
	module apiModule
	err    error
}

// moduleRegistry resolves module names to singleton instances. First
// lookups for the same name converge on exactly one construction via a
// per-entry sync.Once.
type moduleRegistry struct {
	mu        sync.Mutex
	factories map[string]moduleFactory
	entries   map[string]*moduleEntry
}

func newModuleRegistry() *moduleRegistry {
	return &moduleRegistry{
		factories: make(map[string]moduleFactory),
		entries:   make(map[string]*moduleEntry),
	}
}

func (r *moduleRegistry) registerFactory(name string, factory moduleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

func (r *moduleRegistry) resolve(name string) (apiModule, error) {
	r.mu.Lock()
	factory, ok := r.factories[name]
	if !ok {
		r.mu.Unlock()
		return nil, e2ee.Errorf(e2ee.CodeUnknownAPIModule, "Unknown E2EE Server API module: %s", name)
	}
	entry, ok := r.entries[name]
	if !ok {
		entry = &moduleEntry{}
		r.entries[name] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.module, entry.err = factory()
	})
	return entry.module, entry.err
}

// callServerAPIMethod turns an inbound envelope into a validated local
// call: module present, module known, method whitelisted.
func (s *Server) callServerAPIMethod(req *types.BridgeRequest, caller *Client) (interface{}, error) {
	if req.Data.Module == "" {
		return nil, e2ee.NewError(e2ee.CodeModuleRequired, "module is required")
	}
	module, err := s.modules.resolve(req.Data.Module)
	if err != nil {
		return nil, err
	}
	return module.CallMethod(req.Data.Method, req.Data.Params, caller)
}

// roomManagerAPIMethods is the capability table for the roomManager
// module: the exact set of method names remote callers may invoke.
// Methods absent from this set are unreachable over RPC even if they
// exist on the manager (ListRooms, IsUserInRoom, UpdateRoomActivity).
var roomManagerAPIMethods = map[string]struct{}{
	"createRoom":    {},
	"joinRoom":      {},
	"leaveRoom":     {},
	"getRoomUsers":  {},
	"startTransfer": {},
}

func decodeParam[T any](params []json.RawMessage, index int, out *T) error {
	if index >= len(params) {
		return e2ee.Errorf(e2ee.CodeInvalidParameter, "missing parameter %d", index)
	}
	if err := json.Unmarshal(params[index], out); err != nil {
		return e2ee.Errorf(e2ee.CodeInvalidParameter, "invalid parameter %d: %v", index, err)
	}
	return nil
}

// CallMethod dispatches a whitelisted room-manager method. The capability
// check is an exact lookup against roomManagerAPIMethods; the dispatch
// table below is the complete RPC surface of the module.
func (rm *RoomManager) CallMethod(method string, params []json.RawMessage, caller *Client) (interface{}, error) {
	if _, ok := roomManagerAPIMethods[method]; !ok {
		return nil, e2ee.Errorf(e2ee.CodeMethodNotImplemented,
			"method is not allowed: roomManager.%s", method)
	}

	switch method {
	case "createRoom":
		return rm.CreateRoom(caller)
	case "joinRoom":
		var p types.JoinRoomParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		return rm.JoinRoom(p, caller)
	case "leaveRoom":
		var p types.LeaveRoomParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		return rm.LeaveRoom(p, caller)
	case "getRoomUsers":
		var p types.GetRoomUsersParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		return rm.GetRoomUsers(p, caller)
	case "startTransfer":
		var p types.StartTransferParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		return rm.StartTransfer(p, caller)
	}

	return nil, e2ee.Errorf(e2ee.CodeMethodNotImplemented,
		"method not implemented: roomManager.%s", method)
}
