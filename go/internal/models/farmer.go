package models

import "strconv"

// PlayerID is the multiplayer id of a farmer, stable for the session.
type PlayerID int64

func (id PlayerID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Farmer is a session participant as seen by the time subsystem.
type Farmer struct {
	ID           PlayerID  `json:"id"`
	Name         string    `json:"name"`
	IsMainPlayer bool      `json:"is_main_player"`
	Location     *Location `json:"location,omitempty"`
}
