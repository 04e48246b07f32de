package main

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"e2eeserver/e2ee"
	"e2eeserver/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(ServerConfig{
		MaxUsers:       2,
		RoomTimeout:    time.Hour,
		MaxMessageSize: 1 << 20,
		PacingDelay:    0,
	})
	t.Cleanup(s.rooms.Destroy)
	return s
}

func TestCallServerAPIMethodModuleRequired(t *testing.T) {
	s := newTestServer(t)
	req := &types.BridgeRequest{Data: types.APIRequest{Method: "createRoom"}}
	_, err := s.callServerAPIMethod(req, newTestClient("s1"))
	if e2ee.CodeOf(err) != e2ee.CodeModuleRequired {
		t.Fatalf("expected code %d, got %v", e2ee.CodeModuleRequired, err)
	}
}

func TestCallServerAPIMethodUnknownModule(t *testing.T) {
	s := newTestServer(t)
	req := &types.BridgeRequest{Data: types.APIRequest{Module: "fileManager", Method: "read"}}
	_, err := s.callServerAPIMethod(req, newTestClient("s1"))
	if e2ee.CodeOf(err) != e2ee.CodeUnknownAPIModule {
		t.Fatalf("expected code %d, got %v", e2ee.CodeUnknownAPIModule, err)
	}
}

func TestCallMethodEnforcesCapabilityTable(t *testing.T) {
	s := newTestServer(t)

	// Methods that exist on the manager but are not in the table must be
	// unreachable over RPC.
	for _, method := range []string{"listRooms", "ListRooms", "isUserInRoom", "Destroy", "cleanupExpiredRooms"} {
		req := &types.BridgeRequest{Data: types.APIRequest{Module: "roomManager", Method: method}}
		_, err := s.callServerAPIMethod(req, newTestClient("s1"))
		if e2ee.CodeOf(err) != e2ee.CodeMethodNotImplemented {
			t.Fatalf("method %q: expected code %d, got %v", method, e2ee.CodeMethodNotImplemented, err)
		}
	}
}

func TestCallMethodDispatchesWhitelisted(t *testing.T) {
	s := newTestServer(t)
	client := newTestClient("s1")

	req := &types.BridgeRequest{Data: types.APIRequest{Module: "roomManager", Method: "createRoom"}}
	result, err := s.callServerAPIMethod(req, client)
	if err != nil {
		t.Fatalf("createRoom via dispatch failed: %v", err)
	}
	created, ok := result.(*types.CreateRoomResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}

	params, _ := json.Marshal(types.JoinRoomParams{RoomID: created.RoomID})
	req = &types.BridgeRequest{Data: types.APIRequest{
		Module: "roomManager",
		Method: "joinRoom",
		Params: []json.RawMessage{params},
	}}
	if _, err := s.callServerAPIMethod(req, client); err != nil {
		t.Fatalf("joinRoom via dispatch failed: %v", err)
	}
}

func TestCallMethodInvalidParameter(t *testing.T) {
	s := newTestServer(t)

	req := &types.BridgeRequest{Data: types.APIRequest{Module: "roomManager", Method: "joinRoom"}}
	_, err := s.callServerAPIMethod(req, newTestClient("s1"))
	if e2ee.CodeOf(err) != e2ee.CodeInvalidParameter {
		t.Fatalf("expected code %d for missing param, got %v", e2ee.CodeInvalidParameter, err)
	}

	req.Data.Params = []json.RawMessage{json.RawMessage(`"not an object"`)}
	_, err = s.callServerAPIMethod(req, newTestClient("s1"))
	if e2ee.CodeOf(err) != e2ee.CodeInvalidParameter {
		t.Fatalf("expected code %d for malformed param, got %v", e2ee.CodeInvalidParameter, err)
	}
}

type countingModule struct{}

func (countingModule) CallMethod(method string, params []json.RawMessage, caller *Client) (interface{}, error) {
	return nil, nil
}

func TestModuleRegistrySingleFlight(t *testing.T) {
	registry := newModuleRegistry()
	var constructed int32
	registry.registerFactory("counter", func() (apiModule, error) {
		atomic.AddInt32(&constructed, 1)
		return countingModule{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.resolve("counter"); err != nil {
				t.Errorf("resolve failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&constructed); n != 1 {
		t.Fatalf("factory should run exactly once, ran %d times", n)
	}
}
