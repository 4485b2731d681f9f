package domain

import "time"

type ChatMessage struct {
	ID      string    `json:"id"`
	From    UserID    `json:"from"`
	To      UserID    `json:"to"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}
