package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"e2eeserver/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return isWebSocketOriginAllowed(r.Header.Get("Origin"))
	},
}

// ServerConfig is the env-driven configuration of the signaling service.
type ServerConfig struct {
	Port           string
	MaxUsers       int
	RoomTimeout    time.Duration
	MaxMessageSize int64
	PacingDelay    time.Duration
}

// Server owns the process-wide singletons: the room table, the rate-limit
// table, the broadcast groups and the module registry.
type Server struct {
	config  ServerConfig
	rooms   *RoomManager
	limiter *RateLimiter
	groups  *roomGroups
	modules *moduleRegistry
}

func NewServer(config ServerConfig) *Server {
	s := &Server{
		config:  config,
		limiter: NewRateLimiter(),
		groups:  newRoomGroups(),
		modules: newModuleRegistry(),
	}
	s.rooms = NewRoomManager(RoomConfig{
		MaxUsers:    config.MaxUsers,
		RoomTimeout: config.RoomTimeout,
		PacingDelay: config.PacingDelay,
	}, s.groups)
	s.modules.registerFactory("roomManager", func() (apiModule, error) {
		return s.rooms, nil
	})
	return s
}

// Client is one websocket connection. SocketID is the caller identity for
// rate limiting and room membership.
type Client struct {
	Conn       *websocket.Conn
	SocketID   string
	InstanceID string
	IP         string
	SendQueue  chan types.WSMessage
	Done       chan struct{}
	closeMu    sync.Mutex
	closed     bool
}

func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case msg, ok := <-c.SendQueue:
			if !ok {
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				log.Println("WritePump error:", err)
				return
			}
		case <-c.Done:
			return
		}
	}
}

func (c *Client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.SendQueue)
	close(c.Done)
}

func decodeData[T any](raw interface{}) (T, error) {
	var data T
	bytes, err := json.Marshal(raw)
	if err != nil {
		return data, err
	}
	err = json.Unmarshal(bytes, &data)
	return data, err
}

func safeSend(client *Client, conn *websocket.Conn, msg types.WSMessage) {
	if client != nil && client.SendQueue != nil {
		client.closeMu.Lock()
		defer client.closeMu.Unlock()
		if client.closed {
			return
		}
		select {
		case client.SendQueue <- msg:
		default:
			log.Printf("safeSend: send queue full for socket %s, dropping message", client.SocketID)
		}
	} else if conn != nil {
		_ = conn.WriteJSON(msg)
	}
}

// HandleSocket upgrades the connection and routes frames by channel name.
// Events on one connection are handled in arrival order.
func (s *Server) HandleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)
	defer conn.Close()

	client := &Client{
		Conn:       conn,
		SocketID:   uuid.NewString(),
		InstanceID: c.Query("instanceId"),
		IP:         c.ClientIP(),
		SendQueue:  make(chan types.WSMessage, 64),
		Done:       make(chan struct{}),
	}
	go client.WritePump()

	log.Printf("[Socket] User connected: %s, instanceId: %s", client.SocketID, client.InstanceID)

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var wsMsg types.WSMessage
		if err := json.Unmarshal(msgBytes, &wsMsg); err != nil {
			log.Println("Invalid message format:", err)
			continue
		}

		switch wsMsg.Type {
		case types.ChannelRequest:
			s.handleBridgeRequest(client, wsMsg)
		case types.ChannelPeerRequest:
			s.handlePeerRelayRequest(client, wsMsg)
		case types.ChannelPeerResponse:
			s.handlePeerRelayResponse(client, wsMsg)
		default:
			log.Println("Unknown message type:", wsMsg.Type)
		}
	}

	s.cleanupClient(client)
}

// cleanupClient runs best-effort teardown: leave every room this
// connection belongs to, drop its subscriptions and its rate-limit
// entries.
func (s *Server) cleanupClient(client *Client) {
	log.Printf("[Socket] User disconnected: %s, instanceId: %s", client.SocketID, client.InstanceID)

	s.rooms.LeaveRoomBySocket(client)
	s.groups.UnsubscribeAll(client)
	s.limiter.Forget(client.SocketID)
	client.close()
}
