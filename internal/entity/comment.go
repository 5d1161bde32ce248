package entity

import "time"

type Comment struct {
	ID        string    `json:"_id"`
	TicketID  string    `json:"ticketId"`
	Content   string    `json:"content"`
	Author    UserRef   `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Comment) Key() string {
	return c.ID
}

func (c Comment) AuthorName() string {
	if c.Author.Name == "" {
		return "N/A"
	}

	return c.Author.Name
}

type NewComment struct {
	TicketID string `json:"ticketId"`
	Content  string `json:"content"`
}
