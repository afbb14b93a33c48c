package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type    string `json:"type"` // "question"
	Content string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type       string  `json:"type"` // "answer", "escalation", or "error"
	QueryID    string  `json:"query_id,omitempty"`
	Content    string  `json:"content"`
	Route      string  `json:"route,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendChatError(conn, "invalid message format")
			continue
		}

		if req.Content == "" {
			s.sendChatError(conn, "content is required")
			continue
		}

		switch req.Type {
		case "question", "":
			s.handleChatQuestion(conn, r, req)
		default:
			s.sendChatError(conn, "unknown message type: "+req.Type)
		}
	}
}

func (s *Server) handleChatQuestion(conn *websocket.Conn, r *http.Request, req chatRequest) {
	rec, err := s.deps.Orchestrator.Triage(r.Context(), req.Content)
	if err != nil {
		s.sendChatError(conn, "triage failed: "+err.Error())
		return
	}

	out := s.completeDecision(r.Context(), rec)

	resp := chatResponse{
		Type:       "answer",
		QueryID:    rec.QueryID,
		Route:      string(rec.Route),
		Confidence: rec.Confidence,
	}
	if out.Escalated {
		resp.Type = "escalation"
	}
	if out.Reply != nil {
		resp.Content = out.Reply.Text
	}
	s.sendChatResponse(conn, resp)
}

func (s *Server) sendChatResponse(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendChatError(conn *websocket.Conn, message string) {
	resp := chatResponse{
		Type:    "error",
		Content: message,
	}
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write error: %v", err)
	}
}
