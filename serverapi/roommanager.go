package serverapi

import (
	"context"
	"encoding/json"

	"e2eeserver/types"
)

// RoomManagerClient is the typed proxy for the server's roomManager
// module. Its method table is built once at construction; every call
// forwards through the generic remote-call path.
type RoomManagerClient struct {
	createRoom    CallFunc
	joinRoom      CallFunc
	leaveRoom     CallFunc
	getRoomUsers  CallFunc
	startTransfer CallFunc
}

func NewRoomManagerClient(proxy *Proxy) (*RoomManagerClient, error) {
	module, err := proxy.CreateModule("roomManager")
	if err != nil {
		return nil, err
	}
	return &RoomManagerClient{
		createRoom:    module.Method("createRoom"),
		joinRoom:      module.Method("joinRoom"),
		leaveRoom:     module.Method("leaveRoom"),
		getRoomUsers:  module.Method("getRoomUsers"),
		startTransfer: module.Method("startTransfer"),
	}, nil
}

func call[T any](ctx context.Context, fn CallFunc, params ...interface{}) (*T, error) {
	raw, err := fn(ctx, params...)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RoomManagerClient) CreateRoom(ctx context.Context) (*types.CreateRoomResult, error) {
	return call[types.CreateRoomResult](ctx, c.createRoom)
}

func (c *RoomManagerClient) JoinRoom(ctx context.Context, params types.JoinRoomParams) (*types.JoinRoomResult, error) {
	return call[types.JoinRoomResult](ctx, c.joinRoom, params)
}

func (c *RoomManagerClient) LeaveRoom(ctx context.Context, params types.LeaveRoomParams) (*types.LeaveRoomResult, error) {
	return call[types.LeaveRoomResult](ctx, c.leaveRoom, params)
}

func (c *RoomManagerClient) GetRoomUsers(ctx context.Context, roomID string) ([]types.RoomUser, error) {
	raw, err := c.getRoomUsers(ctx, types.GetRoomUsersParams{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	var users []types.RoomUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// StartTransfer returns the new direction, or nil when the call reset it.
func (c *RoomManagerClient) StartTransfer(ctx context.Context, params types.StartTransferParams) (*types.TransferDirection, error) {
	raw, err := c.startTransfer(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var direction types.TransferDirection
	if err := json.Unmarshal(raw, &direction); err != nil {
		return nil, err
	}
	return &direction, nil
}
