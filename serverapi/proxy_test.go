package serverapi

import (
	"context"
	"encoding/json"
	"testing"

	"e2eeserver/e2ee"
	"e2eeserver/types"
)

// fakeBridge records every remote call and answers from a canned table.
type fakeBridge struct {
	calls   []string
	results map[string]json.RawMessage
}

func (b *fakeBridge) CheckEnvAvailable() error                     { return nil }
func (b *fakeBridge) WaitRemoteAPIReady(ctx context.Context) error { return ctx.Err() }

func (b *fakeBridge) CallRemoteAPI(ctx context.Context, module, method string, params []interface{}) (json.RawMessage, error) {
	key := module + "." + method
	b.calls = append(b.calls, key)
	if result, ok := b.results[key]; ok {
		return result, nil
	}
	return json.RawMessage(`null`), nil
}

func TestCreateModuleRejectsDuplicates(t *testing.T) {
	proxy := NewProxy(&fakeBridge{})

	if _, err := proxy.CreateModule("roomManager"); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	_, err := proxy.CreateModule("roomManager")
	if e2ee.CodeOf(err) != e2ee.CodeDuplicateServiceName {
		t.Fatalf("expected code %d, got %v", e2ee.CodeDuplicateServiceName, err)
	}
	if _, err := proxy.CreateModule("fileManager"); err != nil {
		t.Fatalf("different name should register: %v", err)
	}
}

func TestMethodIsMemoized(t *testing.T) {
	proxy := NewProxy(&fakeBridge{})
	module, err := proxy.CreateModule("roomManager")
	if err != nil {
		t.Fatalf("CreateModule failed: %v", err)
	}

	module.Method("createRoom")
	module.Method("createRoom")
	module.Method("joinRoom")

	if len(proxy.methodCache) != 2 {
		t.Fatalf("expected 2 cached methods, got %d", len(proxy.methodCache))
	}
}

func TestCallRoutesToModuleAndMethod(t *testing.T) {
	bridge := &fakeBridge{results: map[string]json.RawMessage{
		"roomManager.createRoom": json.RawMessage(`{"roomId":"ABCDE-FGHJK","encryptionKey":"aa"}`),
	}}
	proxy := NewProxy(bridge)
	module, err := proxy.CreateModule("roomManager")
	if err != nil {
		t.Fatalf("CreateModule failed: %v", err)
	}

	raw, err := module.Method("createRoom")(context.Background())
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	var result struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.RoomID != "ABCDE-FGHJK" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(bridge.calls) != 1 || bridge.calls[0] != "roomManager.createRoom" {
		t.Fatalf("unexpected bridge calls: %v", bridge.calls)
	}
}

func TestRoomManagerClientStartTransferNullResult(t *testing.T) {
	bridge := &fakeBridge{results: map[string]json.RawMessage{
		"roomManager.startTransfer": json.RawMessage(`null`),
	}}
	client, err := NewRoomManagerClient(NewProxy(bridge))
	if err != nil {
		t.Fatalf("NewRoomManagerClient failed: %v", err)
	}

	direction, err := client.StartTransfer(context.Background(), types.StartTransferParams{})
	if err != nil {
		t.Fatalf("StartTransfer failed: %v", err)
	}
	if direction != nil {
		t.Fatalf("null result should map to nil direction, got %+v", direction)
	}
}
