package serverapi

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"e2eeserver/e2ee"
	"e2eeserver/types"
)

const defaultCallTimeout = 30 * time.Second

// wsFrame mirrors types.WSMessage with the payload kept raw for decoding.
type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsResponse is the client-side decode shape of a bridge response.
type wsResponse struct {
	ID     int64              `json:"id"`
	Result json.RawMessage    `json:"result"`
	Error  *types.BridgeError `json:"error"`
}

// Event is a frame that is not an RPC response: a room broadcast or a
// relayed peer payload.
type Event struct {
	Type string
	Data json.RawMessage
}

// WSBridge correlates RPC requests with their responses over one
// websocket connection. Non-response frames are surfaced on Events.
type WSBridge struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan wsResponse
	nextID    int64

	Events chan Event

	timeout   time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// DialBridge connects to the server's /ws endpoint and starts the read
// loop.
func DialBridge(ctx context.Context, url string) (*WSBridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	b := &WSBridge{
		conn:    conn,
		pending: make(map[int64]chan wsResponse),
		Events:  make(chan Event, 64),
		timeout: defaultCallTimeout,
		done:    make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

func (b *WSBridge) readLoop() {
	defer b.Close()
	for {
		_, msgBytes, err := b.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(msgBytes, &frame); err != nil {
			continue
		}
		if frame.Type == types.ChannelResponse {
			var resp wsResponse
			if err := json.Unmarshal(frame.Data, &resp); err != nil {
				continue
			}
			b.pendingMu.Lock()
			ch, ok := b.pending[resp.ID]
			if ok {
				delete(b.pending, resp.ID)
			}
			b.pendingMu.Unlock()
			if ok {
				ch <- resp
			}
			continue
		}
		select {
		case b.Events <- Event{Type: frame.Type, Data: frame.Data}:
		default:
		}
	}
}

func (b *WSBridge) CheckEnvAvailable() error {
	select {
	case <-b.done:
		return e2ee.NewError(e2ee.CodeOperationFailed, "bridge connection is closed")
	default:
		return nil
	}
}

// WaitRemoteAPIReady is a no-op: the socket transport is ready once
// dialed.
func (b *WSBridge) WaitRemoteAPIReady(ctx context.Context) error {
	return ctx.Err()
}

func (b *WSBridge) CallRemoteAPI(ctx context.Context, module, method string, params []interface{}) (json.RawMessage, error) {
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, e2ee.Errorf(e2ee.CodeAPICallFailed, "marshal param: %v", err)
		}
		rawParams = append(rawParams, raw)
	}

	id := atomic.AddInt64(&b.nextID, 1)
	ch := make(chan wsResponse, 1)
	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()

	err := b.send(types.WSMessage{
		Type: types.ChannelRequest,
		Data: types.BridgeRequest{
			ID: id,
			Data: types.APIRequest{
				Module: module,
				Method: method,
				Params: rawParams,
			},
		},
	})
	if err != nil {
		b.dropPending(id)
		return nil, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, &e2ee.Error{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	case <-ctx.Done():
		b.dropPending(id)
		return nil, ctx.Err()
	case <-b.done:
		b.dropPending(id)
		return nil, e2ee.NewError(e2ee.CodeOperationFailed, "bridge connection is closed")
	case <-timer.C:
		b.dropPending(id)
		return nil, e2ee.Errorf(e2ee.CodeOperationTimeout, "call %s.%s timed out", module, method)
	}
}

// SendPeerRelay forwards an opaque payload to the other members of the
// room through the relay channel.
func (b *WSBridge) SendPeerRelay(roomID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return e2ee.Errorf(e2ee.CodeAPICallFailed, "marshal relay payload: %v", err)
	}
	return b.send(types.WSMessage{
		Type: types.ChannelPeerRequest,
		Data: types.PeerRelayEnvelope{Payload: raw, RoomID: roomID},
	})
}

// SendPeerRelayResponse forwards a relay reply to the room.
func (b *WSBridge) SendPeerRelayResponse(roomID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return e2ee.Errorf(e2ee.CodeAPICallFailed, "marshal relay payload: %v", err)
	}
	return b.send(types.WSMessage{
		Type: types.ChannelPeerResponse,
		Data: types.PeerRelayEnvelope{Payload: raw, RoomID: roomID},
	})
}

func (b *WSBridge) send(msg types.WSMessage) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteJSON(msg)
}

func (b *WSBridge) dropPending(id int64) {
	b.pendingMu.Lock()
	delete(b.pending, id)
	b.pendingMu.Unlock()
}

func (b *WSBridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		_ = b.conn.Close()
	})
}
