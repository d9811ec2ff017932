package domain

import "github.com/google/uuid"

// ClientID is assigned by the directory when a connection registers.
type ClientID string

// UnassignedClientID is held by a session until registration succeeds.
const UnassignedClientID ClientID = ""

func NewClientID() ClientID { return ClientID(uuid.NewString()) }

func (c ClientID) Assigned() bool { return c != UnassignedClientID }

func (c ClientID) String() string {
	if !c.Assigned() {
		return "unassigned"
	}
	return string(c)
}
