package models

// Participant is a user's membership record in one group, keyed by UserID.
type Participant struct {
	UserID     string `json:"userId"`
	Identifier string `json:"identifier"`
}

// ParticipantView adds the resolved profile fields shown on a group page.
type ParticipantView struct {
	UserID      string `json:"userId"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	IsOwner     bool   `json:"isOwner"`
}
