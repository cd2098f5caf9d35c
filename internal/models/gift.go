package models

import "github.com/giftlist/backend/internal/validation"

type GiftStatus string

const (
	GiftAvailable GiftStatus = "Available"
	GiftClaimed   GiftStatus = "Claimed"
	GiftPurchased GiftStatus = "Purchased"
)

func (s GiftStatus) Valid() bool {
	switch s {
	case GiftAvailable, GiftClaimed, GiftPurchased:
		return true
	}
	return false
}

// Gift is the read model of a wish-list item inside a group. Status and
// StatusText are left empty when the gift is rendered for its owner.
type Gift struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	UserID         string     `json:"userId"`
	UserIdentifier string     `json:"userIdentifier"`
	Price          string     `json:"price"`
	WebURL         string     `json:"webUrl"`
	Note           string     `json:"note"`
	Status         GiftStatus `json:"status,omitempty"`
	StatusText     string     `json:"statusText,omitempty"`
}

// NewGift returns the empty gift used before data loads.
func NewGift() Gift {
	return Gift{Status: GiftAvailable}
}

// UserGift is the owner's view of their own wish: no status at all.
type UserGift struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	WebURL string `json:"webUrl"`
	Note   string `json:"note"`
}

// GiftUpdateOrCreate is the write model for adding or editing a gift.
type GiftUpdateOrCreate struct {
	Name   string `json:"name"`
	Price  string `json:"price"`
	WebURL string `json:"webUrl"`
	Note   string `json:"note"`
}

func (r *GiftUpdateOrCreate) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.ValidateRequiredField(r.Name) {
		errors["name"] = "Please enter a gift name"
	}
	if !(validation.ValidateEmptyStringField(r.WebURL) || validation.IsValidURL(r.WebURL)) {
		errors["webUrl"] = "Please enter a valid URL"
	}
	if !validation.ValidateRequiredField(r.Note) {
		errors["note"] = "Please enter a note, description, or additional info"
	}
	if !validation.ValidateRequiredField(r.Price) {
		errors["price"] = "Please enter the price of the gift"
	}

	return errors
}

// MapToGiftForCreation builds a fresh Available gift owned by userID.
func MapToGiftForCreation(form GiftUpdateOrCreate, userID, userIdentifier string) Gift {
	return Gift{
		Name:           form.Name,
		UserID:         userID,
		UserIdentifier: userIdentifier,
		Price:          form.Price,
		WebURL:         form.WebURL,
		Note:           form.Note,
		Status:         GiftAvailable,
		StatusText:     "",
	}
}

func MapGiftToUserGift(g Gift) UserGift {
	return UserGift{
		ID:     g.ID,
		Name:   g.Name,
		Price:  g.Price,
		WebURL: g.WebURL,
		Note:   g.Note,
	}
}

// StatusChangeRequest moves a gift one step along Available, Claimed, Purchased.
type StatusChangeRequest struct {
	Direction string `json:"direction"`
}

const (
	DirectionNext = "next"
	DirectionPrev = "prev"
)

func (r *StatusChangeRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Direction != DirectionNext && r.Direction != DirectionPrev {
		errors["direction"] = "Direction must be next or prev"
	}
	return errors
}

func (r *StatusChangeRequest) Next() bool {
	return r.Direction == DirectionNext
}

// GiftQuery narrows and orders a group's gift list.
type GiftQuery struct {
	Search string
	UserID string
	Status GiftStatus
	Sort   string
	Desc   bool
}

const (
	GiftSortName  = "name"
	GiftSortPrice = "price"
)
