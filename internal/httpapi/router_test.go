package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/blog-service/internal/account"
	"github.com/UkralStul/blog-service/internal/blog"
	"github.com/UkralStul/blog-service/internal/credential"
	"github.com/UkralStul/blog-service/internal/dataloader"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/storage/inmemory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	broker  *events.Broker
}

func newTestAPI(t *testing.T) *testAPI {
	store := inmemory.New()
	broker := events.NewBroker()
	accounts := account.NewService(store, credential.NewHasher(bcrypt.MinCost), credential.NewTokens(), account.Settings{
		AccessSecret:  "access",
		AccessTTL:     time.Hour,
		RefreshSecret: "refresh",
		RefreshTTL:    24 * time.Hour,
	})
	posts := blog.NewService(store, store, dataloader.NewResolver(store), broker)

	return &testAPI{t: t, broker: broker, handler: NewRouter(Deps{
		Accounts:     accounts,
		Posts:        posts,
		Events:       broker,
		AccountStore: store,
		RefreshTTL:   24 * time.Hour,
	})}
}

type response struct {
	Code    int
	Cookies []*http.Cookie
	Body    struct {
		Success       bool            `json:"success"`
		StatusCode    int             `json:"statusCode"`
		Message       string          `json:"message"`
		Data          json.RawMessage `json:"data"`
		Meta          json.RawMessage `json:"meta"`
		ErrorMessages []ErrorMessage  `json:"errorMessages"`
	}
}

func (a *testAPI) do(method, path, token string, body any, cookies ...*http.Cookie) *response {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	res := &response{Code: rec.Code, Cookies: rec.Result().Cookies()}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &res.Body))
	}
	return res
}

func (r *response) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body.Data, dst))
}

type session struct {
	ID    string
	Token string
}

func (a *testAPI) signup(name, email string) session {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret",
	})
	require.Equal(a.t, http.StatusCreated, res.Code)

	var data struct {
		Account     struct{ ID string } `json:"account"`
		AccessToken string              `json:"accessToken"`
	}
	res.decode(a.t, &data)
	return session{ID: data.Account.ID, Token: data.AccessToken}
}

type postBody struct {
	ID       string   `json:"id"`
	Likes    []string `json:"likes"`
	Creator  struct{ ID, Name string }
	Comments []struct {
		ID      string `json:"id"`
		Text    string `json:"text"`
		Author  struct{ ID, Name string }
		Replies []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"replies"`
	} `json:"comments"`
}

func (a *testAPI) createPost(s session, title string) postBody {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/blog", s.Token, map[string]string{
		"title": title, "imageUrl": "https://img.example.com/x.png", "description": "d",
	})
	require.Equal(a.t, http.StatusCreated, res.Code)
	var p postBody
	res.decode(a.t, &p)
	return p
}

func (a *testAPI) getPost(id string) postBody {
	a.t.Helper()
	res := a.do(http.MethodGet, "/api/v1/blog/"+id, "", nil)
	require.Equal(a.t, http.StatusOK, res.Code)
	var p postBody
	res.decode(a.t, &p)
	return p
}

// === Auth ===

func TestAuth_SignupLoginProfile(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ann", "email": "a@x.com", "password": "secret",
	})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.True(t, res.Body.Success)
	assert.NotContains(t, string(res.Body.Data), "passwordHash")
	require.Len(t, res.Cookies, 1)
	assert.Equal(t, refreshCookie, res.Cookies[0].Name)
	assert.True(t, res.Cookies[0].HttpOnly)

	res = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "secret"})
	require.Equal(t, http.StatusOK, res.Code)
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	res.decode(t, &login)
	assert.NotContains(t, string(res.Body.Data), "refreshToken")

	res = api.do(http.MethodGet, "/api/v1/auth/profile", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var profile struct{ Email string }
	res.decode(t, &profile)
	assert.Equal(t, "a@x.com", profile.Email)
}

func TestAuth_Errors(t *testing.T) {
	api := newTestAPI(t)
	api.signup("Ann", "a@x.com")

	res := api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"name": "A2", "email": "a@x.com", "password": "secret"})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.False(t, res.Body.Success)

	res = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "b@x.com", "password": "secret"})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = api.do(http.MethodGet, "/api/v1/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = api.do(http.MethodGet, "/api/v1/auth/profile", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestAuth_Validation(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ann", "email": "not-an-email", "password": "ab",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	paths := []string{}
	for _, m := range res.Body.ErrorMessages {
		paths = append(paths, m.Path)
	}
	assert.ElementsMatch(t, []string{"email", "password"}, paths)

	res = api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Ann", "email": "a@x.com", "password": "secret", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodPost, "/api/v1/auth/signup", "", `{"name":"Ann"`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestAuth_ChangePasswordAndRefresh(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"name": "Ann", "email": "a@x.com", "password": "secret"})
	require.Equal(t, http.StatusCreated, res.Code)
	var data struct {
		AccessToken string `json:"accessToken"`
	}
	res.decode(t, &data)
	cookie := res.Cookies[0]

	res = api.do(http.MethodPatch, "/api/v1/auth/change-password", data.AccessToken, map[string]string{"oldPassword": "wrong", "newPassword": "newpw"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = api.do(http.MethodPatch, "/api/v1/auth/change-password", data.AccessToken, map[string]string{"oldPassword": "secret", "newPassword": "newpw"})
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "newpw"})
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodPost, "/api/v1/auth/refresh-token", "", nil, cookie)
	require.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodPost, "/api/v1/auth/refresh-token", "", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

// === Blog ===

func TestBlog_LikeScenario(t *testing.T) {
	api := newTestAPI(t)
	a := api.signup("Ann", "a@x.com")
	b := api.signup("Bob", "b@x.com")
	p := api.createPost(a, "P")
	assert.Equal(t, "Ann", p.Creator.Name)

	res := api.do(http.MethodPost, "/api/v1/blog/like/"+p.ID, b.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{b.ID}, api.getPost(p.ID).Likes)

	res = api.do(http.MethodPost, "/api/v1/blog/like/"+p.ID, b.Token, nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = api.do(http.MethodDelete, "/api/v1/blog/remove-like/"+p.ID, b.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{}, api.getPost(p.ID).Likes)

	res = api.do(http.MethodDelete, "/api/v1/blog/remove-like/"+p.ID, b.Token, nil)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestBlog_CommentScenario(t *testing.T) {
	api := newTestAPI(t)
	a := api.signup("Ann", "a@x.com")
	b := api.signup("Bob", "b@x.com")
	p := api.createPost(a, "P")

	res := api.do(http.MethodPost, "/api/v1/blog/"+p.ID+"/comment", a.Token, map[string]string{"text": "hello"})
	require.Equal(t, http.StatusCreated, res.Code)
	var withComment postBody
	res.decode(t, &withComment)
	require.Len(t, withComment.Comments, 1)
	c := withComment.Comments[0].ID

	res = api.do(http.MethodPatch, "/api/v1/blog/"+p.ID+"/comment/"+c, b.Token, map[string]string{"text": "hacked"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodPatch, "/api/v1/blog/"+p.ID+"/comment/"+c, a.Token, map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "hi", api.getPost(p.ID).Comments[0].Text)

	res = api.do(http.MethodPost, "/api/v1/blog/"+p.ID+"/comment/"+c, b.Token, map[string]string{"text": "reply"})
	require.Equal(t, http.StatusCreated, res.Code)
	var withReply postBody
	res.decode(t, &withReply)
	require.Len(t, withReply.Comments[0].Replies, 1)
	r := withReply.Comments[0].Replies[0].ID

	res = api.do(http.MethodPatch, "/api/v1/blog/"+p.ID+"/comment/"+c+"/reply/"+r, a.Token, map[string]string{"text": "nope"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodPatch, "/api/v1/blog/"+p.ID+"/comment/"+c+"/reply/"+r, b.Token, map[string]string{"text": "edited"})
	require.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodDelete, "/api/v1/blog/"+p.ID+"/comment/"+c+"/reply/"+r, b.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, api.getPost(p.ID).Comments[0].Replies)

	res = api.do(http.MethodPost, "/api/v1/blog/"+p.ID+"/comment/missing", b.Token, map[string]string{"text": "reply"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodDelete, "/api/v1/blog/"+p.ID+"/comment/"+c, a.Token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, api.getPost(p.ID).Comments)
}

func TestBlog_UpdateAndDeleteRequireCreator(t *testing.T) {
	api := newTestAPI(t)
	a := api.signup("Ann", "a@x.com")
	b := api.signup("Bob", "b@x.com")
	p := api.createPost(a, "P")

	res := api.do(http.MethodPatch, "/api/v1/blog/"+p.ID, b.Token, map[string]string{"title": "mine now"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = api.do(http.MethodPatch, "/api/v1/blog/"+p.ID, a.Token, map[string]string{"creatorId": b.ID})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodPatch, "/api/v1/blog/"+p.ID, a.Token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = api.do(http.MethodPatch, "/api/v1/blog/"+p.ID, a.Token, map[string]string{"title": "P2"})
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodDelete, "/api/v1/blog/"+p.ID, b.Token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = api.do(http.MethodDelete, "/api/v1/blog/"+p.ID, a.Token, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodGet, "/api/v1/blog/"+p.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestBlog_List(t *testing.T) {
	api := newTestAPI(t)
	a := api.signup("Ann", "a@x.com")
	api.createPost(a, "Learning Go")
	api.createPost(a, "Cooking")

	res := api.do(http.MethodGet, "/api/v1/blog?searchTerm=go&limit=5", "", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var posts []postBody
	res.decode(t, &posts)
	require.Len(t, posts, 1)
	assert.Equal(t, "Ann", posts[0].Creator.Name)

	var meta struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		TotalCount int64 `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Meta, &meta))
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 5, meta.Limit)
	assert.Equal(t, int64(1), meta.TotalCount)
}

func TestBlog_CreateRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodPost, "/api/v1/blog", "", map[string]string{"title": "t", "imageUrl": "i", "description": "d"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	res := api.do(http.MethodGet, "/api/v1/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "API not found", res.Body.Message)
}

func TestBlog_EventStream(t *testing.T) {
	api := newTestAPI(t)
	a := api.signup("Ann", "a@x.com")
	b := api.signup("Bob", "b@x.com")
	p := api.createPost(a, "P")

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/blog/" + p.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The server subscribes right after the upgrade.
	require.Eventually(t, func() bool { return api.broker.Subscribers(p.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	api.do(http.MethodPost, "/api/v1/blog/like/"+p.ID, b.Token, nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e events.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.PostLiked, e.Type)
	assert.Equal(t, p.ID, e.PostID)
	assert.Equal(t, b.ID, e.ActorID)
}

func TestBlog_EventStreamUnknownPost(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodGet, "/api/v1/blog/missing/events", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}
