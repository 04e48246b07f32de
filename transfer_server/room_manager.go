package main

import (
	"log"
	"sort"
	"sync"
	"time"

	"e2eeserver/e2ee"
	"e2eeserver/types"
)

const (
	// Artificial pacing applied to createRoom and joinRoom so clients
	// perceive consistent latency.
	clientPacingDelay = 1 * time.Second

	roomCleanupInterval   = 5 * time.Minute
	verifyCodeMaxAttempts = 10
)

// Room is one ephemeral transfer session.
type Room struct {
	ID                string
	EncryptionKey     string
	Users             map[string]*types.RoomUser
	TransferDirection *types.TransferDirection
	CreatedAt         time.Time
	LastActivity      time.Time
	MaxUsers          int
}

// RoomConfig controls room capacity and lifetime. PacingDelay overrides
// clientPacingDelay; tests pass zero to skip the artificial waits.
type RoomConfig struct {
	MaxUsers    int
	RoomTimeout time.Duration
	PacingDelay time.Duration
}

// RoomManager owns all room and membership state for the life of the
// process. Rooms are destroyed when their last member leaves or when the
// periodic sweep finds them idle past the configured timeout.
type RoomManager struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	config      RoomConfig
	broadcaster Broadcaster
	pacing      time.Duration
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewRoomManager(config RoomConfig, broadcaster Broadcaster) *RoomManager {
	rm := &RoomManager{
		rooms:       make(map[string]*Room),
		config:      config,
		broadcaster: broadcaster,
		pacing:      config.PacingDelay,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go rm.runCleanup()
	return rm
}

func (rm *RoomManager) runCleanup() {
	ticker := time.NewTicker(roomCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rm.cleanupExpiredRooms()
		case <-rm.stop:
			return
		}
	}
}

// CreateRoom mints a fresh room id and encryption key. Id collisions with
// a live room trigger a paced regenerate; the final existence check and
// the insert happen under one lock acquisition.
func (rm *RoomManager) CreateRoom(caller *Client) (*types.CreateRoomResult, error) {
	time.Sleep(rm.pacing)

	for {
		roomID, err := e2ee.GenerateRoomID()
		if err != nil {
			return nil, err
		}
		encryptionKey, err := e2ee.GenerateEncryptionKey()
		if err != nil {
			return nil, err
		}

		rm.mu.Lock()
		if _, exists := rm.rooms[roomID]; exists {
			rm.mu.Unlock()
			log.Printf("[RoomManager] Room ID %s already exists, waiting to regenerate", roomID)
			time.Sleep(rm.pacing)
			continue
		}

		now := rm.now()
		rm.rooms[roomID] = &Room{
			ID:            roomID,
			EncryptionKey: encryptionKey,
			Users:         make(map[string]*types.RoomUser),
			CreatedAt:     now,
			LastActivity:  now,
			MaxUsers:      rm.config.MaxUsers,
		}
		rm.mu.Unlock()

		log.Printf("[RoomManager] Room created: %s", roomID)
		return &types.CreateRoomResult{RoomID: roomID, EncryptionKey: encryptionKey}, nil
	}
}

// JoinRoom adds the caller to a room. Re-joining on the same connection is
// idempotent and returns the existing mapping. A full room broadcasts
// room-full and rejects the join without mutating membership.
func (rm *RoomManager) JoinRoom(params types.JoinRoomParams, caller *Client) (*types.JoinRoomResult, error) {
	time.Sleep(rm.pacing)

	if caller == nil {
		return nil, e2ee.NewError(e2ee.CodeContextRequired, "context is required")
	}
	if !e2ee.IsValidRoomID(params.RoomID) {
		return nil, e2ee.NewError(e2ee.CodeInvalidRoomID, "Invalid room ID")
	}

	rm.mu.Lock()
	room, ok := rm.rooms[params.RoomID]
	if !ok {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeRoomNotFound, "Room not found")
	}

	if len(room.Users) >= room.MaxUsers {
		userCount := len(room.Users)
		rm.mu.Unlock()
		rm.broadcaster.Emit(params.RoomID, types.WSMessage{
			Type: types.EventRoomFull,
			Data: types.RoomFullEvent{RoomID: params.RoomID, UserCount: userCount},
		})
		return nil, e2ee.NewError(e2ee.CodeConnectionRejected, "Connection Rejected")
	}

	for userID, info := range room.Users {
		if info.SocketID == caller.SocketID {
			result := &types.JoinRoomResult{
				Success:   true,
				UserID:    userID,
				RoomID:    params.RoomID,
				RoomKey:   room.EncryptionKey,
				UserCount: len(room.Users),
			}
			rm.mu.Unlock()
			return result, nil
		}
	}

	userID, err := e2ee.GenerateUserID()
	if err != nil {
		rm.mu.Unlock()
		return nil, err
	}

	room.Users[userID] = &types.RoomUser{
		ID:              userID,
		SocketID:        caller.SocketID,
		JoinedAt:        rm.now(),
		AppPlatform:     params.AppPlatform,
		AppPlatformName: params.AppPlatformName,
		AppVersion:      params.AppVersion,
		AppBuildNumber:  params.AppBuildNumber,
		AppDeviceName:   params.AppDeviceName,
	}
	room.LastActivity = rm.now()
	userCount := len(room.Users)
	roomKey := room.EncryptionKey
	rm.mu.Unlock()

	log.Printf("[RoomManager] User %s joined room %s, current user count: %d",
		userID, params.RoomID, userCount)

	rm.broadcaster.Subscribe(params.RoomID, caller)

	return &types.JoinRoomResult{
		Success:   true,
		UserID:    userID,
		RoomID:    params.RoomID,
		RoomKey:   roomKey,
		UserCount: userCount,
	}, nil
}

// LeaveRoom removes the caller's member from the room. The caller's
// connection must currently be the member named by params.UserID. The room
// is destroyed when its last member leaves.
func (rm *RoomManager) LeaveRoom(params types.LeaveRoomParams, caller *Client) (*types.LeaveRoomResult, error) {
	if caller == nil {
		return nil, e2ee.NewError(e2ee.CodeContextRequired, "context is required")
	}

	rm.mu.Lock()
	room, ok := rm.rooms[params.RoomID]
	if !ok {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeRoomNotFound, "Room not found")
	}

	memberID, inRoom := findMemberBySocket(room, caller.SocketID)
	if !inRoom {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeSocketNotInRoom, "Socket must be in the room")
	}
	if memberID != params.UserID {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeUserNotFound, "User not found")
	}

	delete(room.Users, params.UserID)
	room.LastActivity = rm.now()
	userCount := len(room.Users)
	destroyed := userCount == 0
	if destroyed {
		delete(rm.rooms, params.RoomID)
	}
	rm.mu.Unlock()

	log.Printf("[RoomManager] User %s left room %s, remaining users: %d",
		params.UserID, params.RoomID, userCount)

	rm.broadcaster.Unsubscribe(params.RoomID, caller)
	rm.broadcaster.Emit(params.RoomID, types.WSMessage{
		Type: types.EventUserLeft,
		Data: types.UserLeftEvent{RoomID: params.RoomID, UserID: params.UserID, UserCount: userCount},
	})

	if destroyed {
		log.Printf("[RoomManager] Empty room deleted: %s", params.RoomID)
	}

	return &types.LeaveRoomResult{Success: true, UserCount: userCount, RoomDestroyed: destroyed}, nil
}

// LeaveRoomBySocket runs leave for every membership bound to the
// connection, isolating per-room failures so one cannot block cleanup of
// the others. Used on transport teardown.
func (rm *RoomManager) LeaveRoomBySocket(caller *Client) {
	if caller == nil {
		return
	}

	type membership struct {
		roomID string
		userID string
	}
	var found []membership

	rm.mu.Lock()
	for roomID, room := range rm.rooms {
		for userID, info := range room.Users {
			if info.SocketID == caller.SocketID {
				found = append(found, membership{roomID: roomID, userID: userID})
			}
		}
	}
	rm.mu.Unlock()

	for _, m := range found {
		if _, err := rm.LeaveRoom(types.LeaveRoomParams{RoomID: m.roomID, UserID: m.userID}, caller); err != nil {
			log.Printf("[RoomManager] leaveRoomBySocket error for room %s: %v", m.roomID, err)
		}
	}
}

// GetRoomUsers returns the room's members sorted by join time, with the
// connection back-reference scrubbed. A destroyed or unknown room yields
// an empty list rather than an error.
func (rm *RoomManager) GetRoomUsers(params types.GetRoomUsersParams, caller *Client) ([]types.RoomUser, error) {
	if caller == nil {
		return nil, e2ee.NewError(e2ee.CodeContextRequired, "context is required")
	}

	rm.mu.Lock()
	room, ok := rm.rooms[params.RoomID]
	if !ok {
		rm.mu.Unlock()
		return []types.RoomUser{}, nil
	}

	if _, inRoom := findMemberBySocket(room, caller.SocketID); !inRoom {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeSocketNotInRoom, "Socket must be in the room")
	}

	users := make([]types.RoomUser, 0, len(room.Users))
	for _, info := range room.Users {
		scrubbed := *info
		scrubbed.SocketID = ""
		users = append(users, scrubbed)
	}
	rm.mu.Unlock()

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})
	return users, nil
}

// StartTransfer sets the room's transfer direction and broadcasts a
// 6-digit verification code. Passing the same user as both ends clears
// the direction instead.
func (rm *RoomManager) StartTransfer(params types.StartTransferParams, caller *Client) (*types.TransferDirection, error) {
	if caller == nil {
		return nil, e2ee.NewError(e2ee.CodeContextRequired, "context is required")
	}

	rm.mu.Lock()
	room, ok := rm.rooms[params.RoomID]
	if !ok {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeRoomNotFound, "Room not found")
	}

	if _, inRoom := findMemberBySocket(room, caller.SocketID); !inRoom {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeSocketNotInRoom, "Socket must be in the room to set transfer direction")
	}

	_, fromExists := room.Users[params.FromUserID]
	_, toExists := room.Users[params.ToUserID]
	if !fromExists || !toExists {
		rm.mu.Unlock()
		return nil, e2ee.NewError(e2ee.CodeUsersNotInRoom, "Both fromUser and toUser must be in the room")
	}

	if params.FromUserID == params.ToUserID {
		room.TransferDirection = nil
		rm.mu.Unlock()
		return nil, nil
	}

	direction := &types.TransferDirection{
		FromUserID: params.FromUserID,
		ToUserID:   params.ToUserID,
	}
	room.TransferDirection = direction
	rm.mu.Unlock()

	randomNumber, err := generateTransferCode()
	if err != nil {
		return nil, err
	}

	rm.broadcaster.Emit(params.RoomID, types.WSMessage{
		Type: types.EventStartTransfer,
		Data: types.StartTransferEvent{
			RoomID:       params.RoomID,
			FromUserID:   params.FromUserID,
			ToUserID:     params.ToUserID,
			RandomNumber: randomNumber,
		},
	})

	result := *direction
	return &result, nil
}

// IsUserInRoom reports whether the connection is a member of the room and
// which user id it maps to.
func (rm *RoomManager) IsUserInRoom(roomID string, socketID string) (string, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	room, ok := rm.rooms[roomID]
	if !ok {
		return "", false
	}
	return findMemberBySocket(room, socketID)
}

// UpdateRoomActivity refreshes the room's last-activity timestamp.
func (rm *RoomManager) UpdateRoomActivity(roomID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if room, ok := rm.rooms[roomID]; ok {
		room.LastActivity = rm.now()
	}
}

// ListRooms snapshots all live rooms for the stats endpoint. Deliberately
// absent from the RPC capability table.
func (rm *RoomManager) ListRooms() []types.RoomListItem {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	items := make([]types.RoomListItem, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		users := make([]string, 0, len(room.Users))
		for userID := range room.Users {
			users = append(users, userID)
		}
		sort.Strings(users)
		items = append(items, types.RoomListItem{
			RoomID:       room.ID,
			UserCount:    len(room.Users),
			MaxUsers:     room.MaxUsers,
			Users:        users,
			CreatedAt:    room.CreatedAt,
			LastActivity: room.LastActivity,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].RoomID < items[j].RoomID })
	return items
}

func (rm *RoomManager) cleanupExpiredRooms() {
	now := rm.now()
	cleaned := 0

	rm.mu.Lock()
	for roomID, room := range rm.rooms {
		if now.Sub(room.LastActivity) > rm.config.RoomTimeout {
			delete(rm.rooms, roomID)
			cleaned++
			log.Printf("[RoomManager] Expired room cleaned: %s", roomID)
		}
	}
	rm.mu.Unlock()

	if cleaned > 0 {
		log.Printf("[RoomManager] Cleaned %d expired rooms this time", cleaned)
	}
}

// Destroy cancels the sweep and clears all room state; used at shutdown.
func (rm *RoomManager) Destroy() {
	rm.stopOnce.Do(func() { close(rm.stop) })
	rm.mu.Lock()
	rm.rooms = make(map[string]*Room)
	rm.mu.Unlock()
	log.Println("[RoomManager] Room manager destroyed")
}

func findMemberBySocket(room *Room, socketID string) (string, bool) {
	for userID, info := range room.Users {
		if info.SocketID == socketID {
			return userID, true
		}
	}
	return "", false
}

func isRepeatedDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// generateTransferCode produces a 6-digit code, re-rolling while all
// digits are identical and falling back to a single-digit fix-up after
// verifyCodeMaxAttempts.
func generateTransferCode() (string, error) {
	var code string
	for attempts := 0; attempts < verifyCodeMaxAttempts; attempts++ {
		var err error
		code, err = e2ee.RandomString(6, e2ee.RandomStringOptions{Chars: e2ee.CharsNumberOnly})
		if err != nil {
			return "", err
		}
		if !isRepeatedDigits(code) {
			return code, nil
		}
	}

	digits := []byte(code)
	if digits[1] == '9' {
		digits[1] = '0'
	} else {
		digits[1]++
	}
	return string(digits), nil
}
