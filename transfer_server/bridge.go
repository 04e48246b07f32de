package main

import (
	"encoding/json"
	"log"

	"e2eeserver/e2ee"
	"e2eeserver/types"
)

// Fallback correlation id when a request arrives without one.
const missingRequestID = -9999

func requestID(id int64) int64 {
	if id == 0 {
		return missingRequestID
	}
	return id
}

// handleBridgeRequest serves the RPC path: rate limit, dispatch, respond
// on the response channel with either a result or a coded error.
func (s *Server) handleBridgeRequest(client *Client, wsMsg types.WSMessage) {
	req, err := decodeData[types.BridgeRequest](wsMsg.Data)
	if err != nil {
		log.Println("Invalid bridge request:", err)
		return
	}

	if !s.limiter.CheckAndRecord(client.SocketID, types.ChannelRequest, req.Data.Method) {
		s.sendBridgeResponse(client, types.ChannelResponse, types.BridgeResponse{
			ID: requestID(req.ID),
			Error: &types.BridgeError{
				Message: "Rate limit, please try again later",
				Code:    e2ee.CodeRateLimitExceeded,
			},
			Scope:      req.Scope,
			RemoteID:   req.RemoteID,
			PeerOrigin: req.PeerOrigin,
		})
		return
	}

	result, err := s.callServerAPIMethod(&req, client)
	resp := types.BridgeResponse{
		ID:         requestID(req.ID),
		Scope:      req.Scope,
		RemoteID:   req.RemoteID,
		PeerOrigin: req.PeerOrigin,
	}
	if err != nil {
		resp.Error = &types.BridgeError{Message: err.Error(), Code: e2ee.CodeOf(err)}
	} else {
		resp.Result = result
	}
	s.sendBridgeResponse(client, types.ChannelResponse, resp)
}

// handlePeerRelayRequest serves the client-to-client path: rate limit,
// then forward the payload verbatim to the other members of the room. The
// server reads only the method name out of the payload, for the rate key;
// rejection uses the reserved negative code on the relay response channel.
func (s *Server) handlePeerRelayRequest(client *Client, wsMsg types.WSMessage) {
	envelope, err := decodeData[types.PeerRelayEnvelope](wsMsg.Data)
	if err != nil {
		log.Println("Invalid peer relay request:", err)
		return
	}

	var peek types.BridgeRequest
	_ = json.Unmarshal(envelope.Payload, &peek)

	if !s.limiter.CheckAndRecord(client.SocketID, types.ChannelPeerRequest, peek.Data.Method) {
		s.sendBridgeResponse(client, types.ChannelPeerResponse, types.BridgeResponse{
			ID: requestID(peek.ID),
			Error: &types.BridgeError{
				Message: "Rate limit, please try again later",
				Code:    PeerRelayRateLimitErrorCode,
			},
			Scope:      peek.Scope,
			RemoteID:   peek.RemoteID,
			PeerOrigin: peek.PeerOrigin,
		})
		return
	}

	s.groups.EmitExcept(envelope.RoomID, client, types.WSMessage{
		Type: types.ChannelPeerRequest,
		Data: envelope.Payload,
	})
}

// handlePeerRelayResponse forwards a relay reply to the room; replies are
// not rate limited.
func (s *Server) handlePeerRelayResponse(client *Client, wsMsg types.WSMessage) {
	envelope, err := decodeData[types.PeerRelayEnvelope](wsMsg.Data)
	if err != nil {
		log.Println("Invalid peer relay response:", err)
		return
	}
	s.groups.EmitExcept(envelope.RoomID, client, types.WSMessage{
		Type: types.ChannelPeerResponse,
		Data: envelope.Payload,
	})
}

func (s *Server) sendBridgeResponse(client *Client, channel string, resp types.BridgeResponse) {
	safeSend(client, client.Conn, types.WSMessage{Type: channel, Data: resp})
}
