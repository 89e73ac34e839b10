package models

import "strings"

// Creator identifies who created a channel, as shown in the directory
type Creator struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Channel is one entry in the channel directory. The ID is assigned by the
// channel stream when the entry is created and never changes afterwards.
type Channel struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Details   string  `json:"details"`
	CreatedBy Creator `json:"createdby"`
}

// NewChannel builds a directory entry for the given key
func NewChannel(key, name, details string, creator Creator) Channel {
	return Channel{
		ID:        key,
		Name:      strings.TrimSpace(name),
		Details:   strings.TrimSpace(details),
		CreatedBy: creator,
	}
}

// Label returns the sidebar label for the channel (e.g., "# general")
func (c Channel) Label() string {
	return "# " + c.Name
}
