package models

import (
	"errors"
	"testing"
)

func TestParsePermissionUpdate(t *testing.T) {
	tests := []struct {
		body      string
		wantField string
		wantValue bool
		wantErr   bool
	}{
		{`{"field":"allow","value":true}`, PermissionAllow, true, false},
		{`{"field":"admin","value":false}`, PermissionAdmin, false, false},
		{`{"field":"owner","value":true}`, "", false, true},
		{`{"field":"allow"}`, "", false, true},
		{`not json`, "", false, true},
	}
	for _, tt := range tests {
		got, err := ParsePermissionUpdate([]byte(tt.body))
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePermissionUpdate(%s) = %v, want error", tt.body, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePermissionUpdate(%s) error: %v", tt.body, err)
			continue
		}
		if got.Field() != tt.wantField || got.Value() != tt.wantValue {
			t.Errorf("ParsePermissionUpdate(%s) = %s/%v", tt.body, got.Field(), got.Value())
		}
	}
}

func TestUnknownPermissionFieldIsTyped(t *testing.T) {
	_, err := ParsePermissionUpdate([]byte(`{"field":"owner","value":true}`))
	if !errors.Is(err, ErrUnknownPermissionField) {
		t.Errorf("error = %v, want ErrUnknownPermissionField", err)
	}
}

func TestPermissionUpdateRoundTrip(t *testing.T) {
	data, err := MarshalPermissionUpdate(SetAdmin(true))
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParsePermissionUpdate(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != SetAdmin(true) {
		t.Errorf("round trip = %#v", got)
	}

	u := UserDetail{}
	got.Apply(&u)
	SetAllow(true).Apply(&u)
	if !u.HasAdminAccess() {
		t.Errorf("detail = %+v, want admin access", u)
	}
}

func TestHasAdminAccessNeedsBothFlags(t *testing.T) {
	tests := []struct {
		u    *UserDetail
		want bool
	}{
		{nil, false},
		{&UserDetail{}, false},
		{&UserDetail{Admin: true}, false},
		{&UserDetail{Allow: true}, false},
		{&UserDetail{Allow: true, Admin: true}, true},
	}
	for _, tt := range tests {
		if got := tt.u.HasAdminAccess(); got != tt.want {
			t.Errorf("HasAdminAccess(%+v) = %v, want %v", tt.u, got, tt.want)
		}
	}
}

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		in   PageRequest
		want PageRequest
	}{
		{PageRequest{}, PageRequest{Direction: PageNext, Limit: DefaultPageSize}},
		{PageRequest{Direction: PagePrev}, PageRequest{Direction: PageNext, Limit: DefaultPageSize}},
		{PageRequest{Cursor: "c", Direction: PagePrev, Limit: 10}, PageRequest{Cursor: "c", Direction: PagePrev, Limit: 10}},
		{PageRequest{Cursor: "c", Direction: "sideways", Limit: 500}, PageRequest{Cursor: "c", Direction: PageNext, Limit: MaxPageSize}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestGiftUpdateOrCreateValidate(t *testing.T) {
	valid := GiftUpdateOrCreate{Name: "Book", Price: "12", Note: "hardcover"}
	if errs := valid.Validate(); len(errs) != 0 {
		t.Errorf("valid gift errors = %v", errs)
	}

	withURL := valid
	withURL.WebURL = "https://example.com/book"
	if errs := withURL.Validate(); len(errs) != 0 {
		t.Errorf("gift with url errors = %v", errs)
	}

	bad := GiftUpdateOrCreate{WebURL: "not a url"}
	errs := bad.Validate()
	for _, field := range []string{"name", "price", "note", "webUrl"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("missing error for %s in %v", field, errs)
		}
	}
}

func TestMapToGiftForCreation(t *testing.T) {
	g := MapToGiftForCreation(GiftUpdateOrCreate{Name: "Book", Price: "12", Note: "n"}, "u1", "Ann")
	if g.Status != GiftAvailable || g.StatusText != "" {
		t.Errorf("new gift status = %q/%q", g.Status, g.StatusText)
	}
	if g.UserID != "u1" || g.UserIdentifier != "Ann" {
		t.Errorf("new gift owner = %q/%q", g.UserID, g.UserIdentifier)
	}
}

func TestGroupUpdateValidate(t *testing.T) {
	tests := []struct {
		name   string
		upd    GroupUpdate
		fields []string
	}{
		{"ok", GroupUpdate{Name: "Xmas", OwnerID: "u1"}, nil},
		{"empty code keeps current", GroupUpdate{Name: "Xmas", OwnerID: "u1", Code: ""}, nil},
		{"missing name", GroupUpdate{OwnerID: "u1"}, []string{"name"}},
		{"missing owner", GroupUpdate{Name: "Xmas", OwnerID: "  "}, []string{"ownerId"}},
		{"short code", GroupUpdate{Name: "Xmas", OwnerID: "u1", Code: "ab"}, []string{"code"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.upd.Validate()
			if len(errs) != len(tt.fields) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := errs[f]; !ok {
					t.Errorf("missing error for %s", f)
				}
			}
		})
	}
}

func TestMapToGroupUpdateClearsCode(t *testing.T) {
	upd := MapToGroupUpdate(ViewGroup{Name: "Xmas", OwnerID: "u1", InvitedUsers: []string{"u2"}, IsPublic: true})
	if upd.Code != "" {
		t.Errorf("code = %q, want empty", upd.Code)
	}
	if upd.IsPublic == nil || !*upd.IsPublic {
		t.Errorf("isPublic = %v", upd.IsPublic)
	}
	if len(upd.InvitedUsers) != 1 || upd.InvitedUsers[0] != "u2" {
		t.Errorf("invited = %v", upd.InvitedUsers)
	}
}

func TestGroupMembership(t *testing.T) {
	g := Group{
		InvitedUsers: []string{"u2"},
		Participants: []Participant{{UserID: "u1"}},
	}
	if !g.HasParticipant("u1") || g.HasParticipant("u2") {
		t.Error("HasParticipant mismatch")
	}
	if !g.IsInvited("u2") || g.IsInvited("u1") {
		t.Error("IsInvited mismatch")
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	r := RegisterRequest{Email: "  ann@example.com ", Password: "secret1", ConfirmPassword: "secret1"}
	if errs := r.Validate(); len(errs) != 0 {
		t.Errorf("errors = %v", errs)
	}
	if r.Email != "ann@example.com" {
		t.Errorf("email not trimmed: %q", r.Email)
	}

	r = RegisterRequest{Email: "ann@example.com", Password: "secret1", ConfirmPassword: "secret2"}
	if _, ok := r.Validate()["confirmPassword"]; !ok {
		t.Error("mismatched confirmation accepted")
	}
}

func TestIdentityLabel(t *testing.T) {
	if got := (&Identity{Email: "a@example.com"}).Label(); got != "a@example.com" {
		t.Errorf("Label = %q", got)
	}
	if got := (&Identity{Email: "a@example.com", DisplayName: "Ann"}).Label(); got != "Ann" {
		t.Errorf("Label = %q", got)
	}
}
