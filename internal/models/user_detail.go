package models

// UserDetail is the application-level account record mirrored from the
// identity provider. New accounts start with Allow and Admin both false.
type UserDetail struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Allow         bool   `json:"allow"`
	Admin         bool   `json:"admin"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoURL"`
	FavoriteGroup string `json:"favoriteGroup,omitempty"`
}

// Name is the label other members see: display name, else email.
func (u *UserDetail) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// HasAdminAccess requires both flags; admin alone grants nothing.
func (u *UserDetail) HasAdminAccess() bool {
	return u != nil && u.Allow && u.Admin
}

// PageKey orders the admin user list.
func (u *UserDetail) PageKey() string {
	return u.Email
}
