package models

import "time"

// Scan is a plant disease scan: the photo, the question asked about it and
// the answer that came back.
type Scan struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}
