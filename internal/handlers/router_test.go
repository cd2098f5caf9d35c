package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giftlist/backend/internal/models"
	"github.com/giftlist/backend/internal/services"
	"github.com/giftlist/backend/internal/storage"
)

type testAPI struct {
	t        *testing.T
	store    *storage.MemoryStore
	identity *services.LocalIdentity
	handler  http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := storage.NewMemoryStore()
	identity := services.NewLocalIdentity("test-secret", time.Hour, "http://localhost/reset")
	sessions := services.NewSessionManager(identity, store.Users(), nil, "https://example.com/default.png")
	users := services.NewUserService(store, sessions)

	return &testAPI{
		t:        t,
		store:    store,
		identity: identity,
		handler: NewRouter(RouterConfig{
			Sessions:        sessions,
			Auth:            services.NewAuthService(identity, sessions, store.Users()),
			Users:           users,
			Groups:          services.NewGroupService(store),
			Gifts:           services.NewGiftService(store),
			AllowedOrigins:  []string{"*"},
			RequestTimeout:  5 * time.Second,
			MaxUploadSizeMB: 1,
		}),
	}
}

type apiUser struct {
	uid   string
	token string
}

// register signs up through the API and optionally grants access directly
// in the store.
func (a *testAPI) register(email string, allow, admin bool) apiUser {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "secret1", "confirmPassword": "secret1",
	})
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Data models.AuthResponse `json:"data"`
	}
	decode(a.t, rec, &resp)

	u := apiUser{uid: resp.Data.Session.User.UID, token: resp.Data.Tokens.IDToken}
	ctx := context.Background()
	if allow {
		if err := a.store.Users().SetPermission(ctx, u.uid, models.SetAllow(true)); err != nil {
			a.t.Fatal(err)
		}
	}
	if admin {
		if err := a.store.Users().SetPermission(ctx, u.uid, models.SetAdmin(true)); err != nil {
			a.t.Fatal(err)
		}
	}
	return u
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

func (a *testAPI) createGroup(owner apiUser, invited ...string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/groups", owner.token, models.CreateGroupRequest{
		Name: "Xmas", Code: "1234", InvitedUsers: invited,
	})
	expectStatus(a.t, rec, http.StatusCreated)
	var resp struct {
		Data models.GroupSummary `json:"data"`
	}
	decode(a.t, rec, &resp)
	return resp.Data.ID
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "123", "confirmPassword": "456",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	var resp models.APIResponse
	decode(t, rec, &resp)
	errs, ok := resp.Errors.(map[string]any)
	if !ok {
		t.Fatalf("errors = %#v", resp.Errors)
	}
	for _, field := range []string{"email", "password", "confirmPassword"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("missing validation error for %s", field)
		}
	}
}

func TestBlockedAccountsSeeAccessBlocked(t *testing.T) {
	api := newTestAPI(t)
	blocked := api.register("blocked@example.com", false, false)

	rec := api.do(http.MethodGet, "/api/auth/session", blocked.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var sess struct {
		Data models.SessionPayload `json:"data"`
	}
	decode(t, rec, &sess)
	if !sess.Data.IsLogged || sess.Data.HasAccess {
		t.Errorf("session = %+v, want logged in without access", sess.Data)
	}

	rec = api.do(http.MethodGet, "/api/groups", blocked.token, nil)
	expectStatus(t, rec, http.StatusForbidden)
	var resp models.APIResponse
	decode(t, rec, &resp)
	if resp.Error != models.MsgAccessBlocked {
		t.Errorf("error = %q, want %q", resp.Error, models.MsgAccessBlocked)
	}

	rec = api.do(http.MethodGet, "/api/groups", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestGroupAndGiftFlow(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice@example.com", true, false)
	bob := api.register("bob@example.com", true, false)

	gid := api.createGroup(alice, bob.uid)

	rec := api.do(http.MethodGet, "/api/groups/joinable", bob.token, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), gid) {
		t.Fatalf("joinable = %s, want %s", rec.Body.String(), gid)
	}
	if strings.Contains(rec.Body.String(), `"code"`) {
		t.Error("joinable list leaks the group code")
	}

	rec = api.do(http.MethodPost, "/api/groups/"+gid+"/join", bob.token, map[string]string{"code": "0000"})
	expectStatus(t, rec, http.StatusForbidden)
	rec = api.do(http.MethodPost, "/api/groups/"+gid+"/join", bob.token, map[string]string{"code": "1234"})
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodPost, "/api/groups/"+gid+"/gifts", alice.token, models.GiftUpdateOrCreate{
		Name: "Scarf", Price: "25", Note: "green",
	})
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		Data models.UserGift `json:"data"`
	}
	decode(t, rec, &created)
	giftPath := "/api/groups/" + gid + "/gifts/" + created.Data.ID

	rec = api.do(http.MethodPost, giftPath+"/status", alice.token, map[string]string{"direction": "next"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = api.do(http.MethodPost, giftPath+"/status", bob.token, map[string]string{"direction": "prev"})
	expectStatus(t, rec, http.StatusConflict)

	rec = api.do(http.MethodPost, giftPath+"/status", bob.token, map[string]string{"direction": "next"})
	expectStatus(t, rec, http.StatusOK)
	var claimed struct {
		Data models.Gift `json:"data"`
	}
	decode(t, rec, &claimed)
	if claimed.Data.Status != models.GiftClaimed {
		t.Errorf("status = %q, want Claimed", claimed.Data.Status)
	}

	rec = api.do(http.MethodGet, "/api/groups/"+gid+"/gifts", alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "Claimed") {
		t.Errorf("owner sees the status of their own gift: %s", rec.Body.String())
	}

	rec = api.do(http.MethodGet, "/api/groups/"+gid+"?q=scarf", bob.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var view struct {
		Data models.ViewGroup `json:"data"`
	}
	decode(t, rec, &view)
	if len(view.Data.Gifts) != 1 || view.Data.Gifts[0].StatusText != "bob@example.com" {
		t.Errorf("gifts = %+v", view.Data.Gifts)
	}

	rec = api.do(http.MethodPut, giftPath, bob.token, models.GiftUpdateOrCreate{Name: "x", Price: "1", Note: "n"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = api.do(http.MethodPost, "/api/groups/"+gid+"/leave", alice.token, nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = api.do(http.MethodDelete, "/api/groups/"+gid, bob.token, nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = api.do(http.MethodDelete, "/api/groups/"+gid, alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = api.do(http.MethodGet, "/api/groups/"+gid, alice.token, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestUpdateGroupValidation(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice@example.com", true, false)
	carol := api.register("carol@example.com", true, false)
	gid := api.createGroup(alice)

	rec := api.do(http.MethodPut, "/api/groups/"+gid, alice.token, models.GroupUpdate{Name: "", OwnerID: alice.uid})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = api.do(http.MethodPut, "/api/groups/"+gid, alice.token, models.GroupUpdate{Name: "New", OwnerID: carol.uid})
	expectStatus(t, rec, http.StatusBadRequest)
	if !strings.Contains(rec.Body.String(), "ownerId") {
		t.Errorf("body = %s, want ownerId error", rec.Body.String())
	}
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register("admin@example.com", true, true)
	bob := api.register("bob@example.com", false, false)
	notReally := api.register("half@example.com", false, true)

	rec := api.do(http.MethodGet, "/api/admin/users", notReally.token, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = api.do(http.MethodPatch, "/api/admin/users/"+bob.uid, admin.token, map[string]any{"field": "owner", "value": true})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = api.do(http.MethodPatch, "/api/admin/users/"+bob.uid, admin.token, map[string]any{"field": "allow", "value": true})
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/api/groups", bob.token, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/api/admin/users?limit=2", admin.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var page models.APIResponse
	decode(t, rec, &page)
	if page.NextCursor == "" || page.PrevCursor != "" {
		t.Fatalf("cursors = %q / %q", page.NextCursor, page.PrevCursor)
	}

	rec = api.do(http.MethodGet, "/api/admin/users?limit=2&dir=next&cursor="+page.NextCursor, admin.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var last models.APIResponse
	decode(t, rec, &last)
	if last.NextCursor != "" || last.PrevCursor == "" {
		t.Errorf("last page cursors = %q / %q", last.NextCursor, last.PrevCursor)
	}

	rec = api.do(http.MethodGet, "/api/admin/users?cursor=garbage", admin.token, nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestListUsersByIDs(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice@example.com", true, false)
	bob := api.register("bob@example.com", false, false)

	rec := api.do(http.MethodGet, "/api/users?ids="+bob.uid, alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
	var resp struct {
		Data []models.UserDetail `json:"data"`
	}
	decode(t, rec, &resp)
	if len(resp.Data) != 1 || resp.Data[0].Email != "bob@example.com" {
		t.Errorf("users = %+v", resp.Data)
	}

	rec = api.do(http.MethodGet, "/api/users?allowed=true", alice.token, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &resp)
	if len(resp.Data) != 1 || resp.Data[0].ID != alice.uid {
		t.Errorf("allowed users = %+v", resp.Data)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	bob := api.register("bob@example.com", true, false)

	rec := api.do(http.MethodPost, "/api/auth/logout", bob.token, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/api/auth/session", bob.token, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestLoginWithStaleToken(t *testing.T) {
	api := newTestAPI(t)
	bob := api.register("bob@example.com", true, false)
	creds := models.LoginRequest{Email: "bob@example.com", Password: "secret1"}

	rec := api.do(http.MethodPost, "/api/auth/login", "stale.expired.token", creds)
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodPost, "/api/auth/logout", bob.token, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = api.do(http.MethodPost, "/api/auth/login", bob.token, creds)
	expectStatus(t, rec, http.StatusOK)
	var resp struct {
		Data models.AuthResponse `json:"data"`
	}
	decode(t, rec, &resp)

	rec = api.do(http.MethodGet, "/api/auth/session", resp.Data.Tokens.IDToken, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/api/groups", "stale.expired.token", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestProfileUpdate(t *testing.T) {
	api := newTestAPI(t)
	bob := api.register("bob@example.com", true, false)

	rec := api.do(http.MethodPut, "/api/profile", bob.token, map[string]string{"displayName": "Bobby"})
	expectStatus(t, rec, http.StatusOK)
	var resp struct {
		Data models.SessionPayload `json:"data"`
	}
	decode(t, rec, &resp)
	if resp.Data.UserDetail == nil || resp.Data.UserDetail.DisplayName != "Bobby" {
		t.Errorf("detail = %+v", resp.Data.UserDetail)
	}

	rec = api.do(http.MethodPut, "/api/profile", bob.token, map[string]string{})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestUploadPhotoWithoutStorageConfigured(t *testing.T) {
	api := newTestAPI(t)
	bob := api.register("bob@example.com", true, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("photo", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/profile/photo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bob.token)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusNotImplemented)
}

func TestGroupStream(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice@example.com", true, false)
	gid := api.createGroup(alice)

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/groups/stream?access_token="+alice.token, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var groups []models.GroupSummary
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &groups); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if len(groups) != 1 || groups[0].ID != gid {
			t.Fatalf("groups = %+v", groups)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}
