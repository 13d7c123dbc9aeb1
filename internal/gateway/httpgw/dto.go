package httpgw

import "taskBot/internal/command"

type MessageRequest struct {
	SenderID  string `json:"sender_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type MessageResponse struct {
	Replies   []command.Reply `json:"replies"`
	RequestID string          `json:"request_id,omitempty"`
}
