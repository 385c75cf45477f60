package webui

import (
	"encoding/json"
	"net/http"
	"time"

	"aichat_backend/core"
)

type chatSendRequest struct {
	Message string `json:"message"`
}

type chatSendResponse struct {
	Message  string `json:"message"`
	Response string `json:"response"`
	ChatID   string `json:"chatId"`
}

type chatItem struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

type chatHistoryResponse struct {
	Chats []chatItem `json:"chats"`
}

func (s *Server) chatAvailable(w http.ResponseWriter) bool {
	if s.deps.Chat == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Chat is not configured")
		return false
	}
	return true
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if !s.chatAvailable(w) {
		return
	}
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	reply, err := s.deps.Chat.Send(r.Context(), core.OwnerFromContext(r.Context()), req.Message)
	if err != nil {
		s.writeError(w, err, "Failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, chatSendResponse{
		Message:  "Message sent successfully",
		Response: reply.Response,
		ChatID:   reply.ChatID,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if !s.chatAvailable(w) {
		return
	}
	turns, err := s.deps.Chat.History(r.Context(), core.OwnerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err, "Failed to fetch chat history")
		return
	}

	items := make([]chatItem, 0, len(turns))
	for _, t := range turns {
		items = append(items, chatItem{ID: t.ID, Message: t.Message, Response: t.Response, CreatedAt: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, chatHistoryResponse{Chats: items})
}
