package models

import (
	"strings"

	"github.com/giftlist/backend/internal/validation"
)

type Group struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Code         string        `json:"code,omitempty"`
	Description  string        `json:"description"`
	IsPublic     bool          `json:"isPublic"`
	OwnerID      string        `json:"ownerId"`
	InvitedUsers []string      `json:"invitedUsers"`
	Participants []Participant `json:"participants"`
	Gifts        []Gift        `json:"gifts"`
}

// NewGroup returns the empty group used before data loads.
func NewGroup() Group {
	return Group{
		InvitedUsers: []string{},
		Participants: []Participant{},
		Gifts:        []Gift{},
	}
}

func (g *Group) HasParticipant(userID string) bool {
	for _, p := range g.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (g *Group) IsInvited(userID string) bool {
	for _, id := range g.InvitedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// ViewGroup is what a participant sees: never the join code.
type ViewGroup struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	IsPublic     bool              `json:"isPublic"`
	OwnerID      string            `json:"ownerId"`
	OwnerName    string            `json:"ownerName"`
	IsOwner      bool              `json:"isOwner"`
	InvitedUsers []string          `json:"invitedUsers"`
	Participants []ParticipantView `json:"participants"`
	Gifts        []Gift            `json:"gifts"`
}

// GroupSummary is one card on the member or joinable group lists.
type GroupSummary struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	IsPublic         bool          `json:"isPublic"`
	OwnerID          string        `json:"ownerId"`
	IsOwner          bool          `json:"isOwner"`
	Participants     []Participant `json:"participants"`
	ParticipantCount int           `json:"participantCount"`
}

func NewGroupSummary(g Group, viewerID string) GroupSummary {
	participants := g.Participants
	if participants == nil {
		participants = []Participant{}
	}
	return GroupSummary{
		ID:               g.ID,
		Name:             g.Name,
		Description:      g.Description,
		IsPublic:         g.IsPublic,
		OwnerID:          g.OwnerID,
		IsOwner:          g.OwnerID == viewerID,
		Participants:     participants,
		ParticipantCount: len(participants),
	}
}

type CreateGroupRequest struct {
	Name         string   `json:"name"`
	Code         string   `json:"code"`
	Description  string   `json:"description"`
	IsPublic     bool     `json:"isPublic"`
	InvitedUsers []string `json:"invitedUsers"`
}

func (r *CreateGroupRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.ValidateRequiredField(r.Name) {
		errors["name"] = "Please enter a group name"
	}
	if !validation.ValidateGroupCode(r.Code) {
		errors["code"] = "Please enter a valid group code"
	}

	return errors
}

// GroupUpdate is the edit-form projection of a group. An empty Code keeps
// the current one.
type GroupUpdate struct {
	Name         string   `json:"name"`
	InvitedUsers []string `json:"invitedUsers"`
	Description  string   `json:"description"`
	OwnerID      string   `json:"ownerId"`
	Code         string   `json:"code"`
	IsPublic     *bool    `json:"isPublic,omitempty"`
}

func (r *GroupUpdate) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.ValidateRequiredField(r.Name) {
		errors["name"] = "Please enter a group name"
	}
	if r.Code != "" && !validation.ValidateGroupCode(r.Code) {
		errors["code"] = "Please enter a valid code"
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		errors["ownerId"] = "Owner is required"
	}

	return errors
}

// MapToGroupUpdate seeds an edit form from what the owner currently sees.
func MapToGroupUpdate(v ViewGroup) GroupUpdate {
	invited := append([]string(nil), v.InvitedUsers...)
	isPublic := v.IsPublic
	return GroupUpdate{
		Name:         v.Name,
		InvitedUsers: invited,
		Description:  v.Description,
		OwnerID:      v.OwnerID,
		Code:         "",
		IsPublic:     &isPublic,
	}
}

type JoinGroupRequest struct {
	Code string `json:"code"`
}

func (r *JoinGroupRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Code == "" {
		errors["code"] = "Please enter the group code"
	}
	return errors
}
