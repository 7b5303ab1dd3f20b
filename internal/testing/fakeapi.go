package testing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/basket/internal/models"
)

var fakeSecret = []byte("fake-api-secret")

// RecordedRequest is one REST call seen by [FakeAPI]
type RecordedRequest struct {
	Method        string
	Path          string
	SessionID     string
	RequestID     string
	Authorization string
}

type fakeUser struct {
	user     models.User
	password string
}

type fakeSub struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	userID int64
}

func (s *fakeSub) send(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	s.conn.WriteJSON(v)
}

// FakeAPI is an in-memory stand-in for the shopping list API with REST routes and per-list WebSocket rooms.
//
// Writes are broadcast to every socket on the list except the one named by the request's x-session-id,
// unless IncludeOrigin is set.
type FakeAPI struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[int64]*fakeUser
	lists         map[int64]*models.ShoppingList
	nextList      int64
	nextItem      int64
	rooms         map[int64]map[string]*fakeSub
	requests      []RecordedRequest
	IncludeOrigin bool
}

// NewFakeAPI starts a FakeAPI that is closed when the test ends
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeAPI{
		users:    make(map[int64]*fakeUser),
		lists:    make(map[int64]*models.ShoppingList),
		rooms:    make(map[int64]map[string]*fakeSub),
		nextList: 100,
		nextItem: 1000,
	}

	r := gin.New()
	r.GET("/api/v1/ws/lists/:id", f.serveWS)

	api := r.Group("/api/v1")
	api.POST("/auth/login", f.login)

	authed := api.Group("", f.record, f.auth)
	authed.GET("/auth/me", f.me)
	authed.GET("/lists", f.getLists)
	authed.POST("/lists", f.createList)
	authed.GET("/lists/:id", f.member, f.getList)
	authed.PUT("/lists/:id", f.member, f.updateList)
	authed.DELETE("/lists/:id", f.member, f.deleteList)
	authed.POST("/lists/:id/share", f.member, f.shareList)
	authed.DELETE("/lists/:id/members/:userId", f.member, f.removeMember)
	authed.GET("/lists/:id/items", f.member, f.getItems)
	authed.POST("/lists/:id/items", f.member, f.createItem)
	authed.PUT("/lists/:id/items/:itemId", f.member, f.updateItem)
	authed.PATCH("/lists/:id/items/:itemId/toggle", f.member, f.toggleItem)
	authed.DELETE("/lists/:id/items/:itemId", f.member, f.deleteItem)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.close)
	return f
}

func (f *FakeAPI) close() {
	f.mu.Lock()
	for _, room := range f.rooms {
		for _, s := range room {
			s.conn.Close()
		}
	}
	f.mu.Unlock()
	f.Server.Close()
}

// WSURL is the WebSocket base URL
func (f *FakeAPI) WSURL() string {
	return "ws" + strings.TrimPrefix(f.URL, "http")
}

// AddUser registers a user and returns a valid token for them
func (f *FakeAPI) AddUser(u models.User, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = &fakeUser{user: u, password: password}
	return f.TokenFor(u, time.Hour)
}

// TokenFor signs a token for u that expires after ttl
func (f *FakeAPI) TokenFor(u models.User, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(u.ID, 10),
		"email": u.Email,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSecret)
	return tok
}

// AddList stores l as-is
func (f *FakeAPI) AddList(l models.ShoppingList) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := l.Clone()
	f.lists[l.ID] = &c
	for _, it := range l.Items {
		f.nextItem = max(f.nextItem, it.ID)
	}
}

// List returns the stored copy of a list
func (f *FakeAPI) List(id int64) (models.ShoppingList, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lists[id]
	if !ok {
		return models.ShoppingList{}, false
	}
	return l.Clone(), true
}

// Requests returns every recorded REST call
func (f *FakeAPI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// Subscribers counts sockets joined to a list
func (f *FakeAPI) Subscribers(listID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[listID])
}

// Broadcast sends frame to every socket on the list except exclude
func (f *FakeAPI) Broadcast(listID int64, frame any, exclude string) {
	f.mu.Lock()
	var targets []*fakeSub
	for sid, s := range f.rooms[listID] {
		if sid == exclude && !f.IncludeOrigin {
			continue
		}
		targets = append(targets, s)
	}
	f.mu.Unlock()

	for _, s := range targets {
		s.send(frame)
	}
}

func (f *FakeAPI) verify(token string) (int64, bool) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return fakeSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, false
	}
	sub, _ := claims.GetSubject()
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[id]
	return id, ok
}

var fakeUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (f *FakeAPI) serveWS(c *gin.Context) {
	listID, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	conn, err := fakeUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	reject := func(code int, reason string) {
		msg := websocket.FormatCloseMessage(code, reason)
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}

	userID, ok := f.verify(c.Query("token"))
	if !ok {
		reject(websocket.ClosePolicyViolation, "invalid token")
		return
	}

	f.mu.Lock()
	list, found := f.lists[listID]
	allowed := found && list.HasMember(userID)
	f.mu.Unlock()
	if !allowed {
		reject(websocket.CloseUnsupportedData, "access denied")
		return
	}

	sid := uuid.NewString()
	sub := &fakeSub{conn: conn, userID: userID}

	f.mu.Lock()
	if f.rooms[listID] == nil {
		f.rooms[listID] = make(map[string]*fakeSub)
	}
	f.rooms[listID][sid] = sub
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.rooms[listID], sid)
		f.mu.Unlock()
	}()

	sub.send(gin.H{"type": "connection_established", "session_id": sid, "list_id": listID})

	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg["type"] == "ping" {
			sub.send(gin.H{"type": "pong"})
		}
	}
}

func (f *FakeAPI) record(c *gin.Context) {
	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		SessionID:     c.GetHeader("x-session-id"),
		RequestID:     c.GetHeader("X-Request-ID"),
		Authorization: c.GetHeader("Authorization"),
	})
	f.mu.Unlock()
	c.Next()
}

func (f *FakeAPI) auth(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	userID, ok := f.verify(token)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

func (f *FakeAPI) member(c *gin.Context) {
	listID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid list id"})
		return
	}

	f.mu.Lock()
	list, ok := f.lists[listID]
	allowed := ok && list.HasMember(c.GetInt64("user_id"))
	f.mu.Unlock()

	switch {
	case !ok:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "List not found"})
	case !allowed:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Not a member of this list"})
	default:
		c.Set("list_id", listID)
		c.Next()
	}
}

func (f *FakeAPI) login(c *gin.Context) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	f.mu.Lock()
	var found *fakeUser
	for _, u := range f.users {
		if u.user.Email == in.Email && u.password == in.Password {
			found = u
		}
	}
	f.mu.Unlock()

	if found == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect email or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": f.TokenFor(found.user, time.Hour), "token_type": "bearer"})
}

func (f *FakeAPI) me(c *gin.Context) {
	f.mu.Lock()
	u := f.users[c.GetInt64("user_id")].user
	f.mu.Unlock()
	c.JSON(http.StatusOK, u)
}

func (f *FakeAPI) getLists(c *gin.Context) {
	userID := c.GetInt64("user_id")

	f.mu.Lock()
	lists := []models.ShoppingList{}
	for _, l := range f.lists {
		if l.HasMember(userID) {
			lists = append(lists, l.Clone())
		}
	}
	f.mu.Unlock()

	c.JSON(http.StatusOK, lists)
}

func (f *FakeAPI) getList(c *gin.Context) {
	l, _ := f.List(c.GetInt64("list_id"))
	c.JSON(http.StatusOK, l)
}

func (f *FakeAPI) createList(c *gin.Context) {
	var in models.ListInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Validate() != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "name is required"})
		return
	}

	userID := c.GetInt64("user_id")
	f.mu.Lock()
	f.nextList++
	now := time.Now().UTC()
	l := &models.ShoppingList{
		ID:          f.nextList,
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     userID,
		Members:     []models.User{f.users[userID].user},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.lists[l.ID] = l
	out := l.Clone()
	f.mu.Unlock()

	c.JSON(http.StatusCreated, out)
}

func (f *FakeAPI) listChange(c *gin.Context, event string, l models.ShoppingList, extra gin.H) {
	frame := gin.H{
		"type":       "list_change",
		"event_type": event,
		"list_id":    l.ID,
		"list":       l,
		"user_id":    c.GetInt64("user_id"),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		frame[k] = v
	}
	f.Broadcast(l.ID, frame, c.GetHeader("x-session-id"))
}

func (f *FakeAPI) itemChange(c *gin.Context, event string, it models.Item) {
	f.Broadcast(it.ListID, gin.H{
		"type":       "item_change",
		"event_type": event,
		"list_id":    it.ListID,
		"item":       it,
		"user_id":    c.GetInt64("user_id"),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}, c.GetHeader("x-session-id"))
}

func (f *FakeAPI) updateList(c *gin.Context) {
	var in models.ListInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Validate() != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "name is required"})
		return
	}

	f.mu.Lock()
	l := f.lists[c.GetInt64("list_id")]
	l.Name, l.Description, l.UpdatedAt = in.Name, in.Description, time.Now().UTC()
	out := l.Clone()
	f.mu.Unlock()

	f.listChange(c, "updated", out, nil)
	c.JSON(http.StatusOK, out)
}

func (f *FakeAPI) deleteList(c *gin.Context) {
	f.mu.Lock()
	id := c.GetInt64("list_id")
	out := f.lists[id].Clone()
	delete(f.lists, id)
	f.mu.Unlock()

	f.listChange(c, "deleted", out, nil)
	c.Status(http.StatusNoContent)
}

func (f *FakeAPI) shareList(c *gin.Context) {
	var in models.ShareInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Validate() != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "a valid email is required"})
		return
	}

	f.mu.Lock()
	l := f.lists[c.GetInt64("list_id")]
	var invitee *fakeUser
	for _, u := range f.users {
		if u.user.Email == in.Email {
			invitee = u
		}
	}
	if invitee == nil {
		f.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
		return
	}
	if !l.HasMember(invitee.user.ID) {
		l.Members = append(l.Members, invitee.user)
	}
	out := l.Clone()
	f.mu.Unlock()

	f.listChange(c, "shared", out, gin.H{"new_member_email": in.Email})
	c.JSON(http.StatusOK, out)
}

func (f *FakeAPI) removeMember(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid user id"})
		return
	}

	f.mu.Lock()
	l := f.lists[c.GetInt64("list_id")]
	members := l.Members[:0]
	for _, m := range l.Members {
		if m.ID != userID {
			members = append(members, m)
		}
	}
	l.Members = members
	out := l.Clone()
	f.mu.Unlock()

	f.listChange(c, "member_removed", out, gin.H{"removed_user_id": userID})
	c.Status(http.StatusNoContent)
}

func (f *FakeAPI) getItems(c *gin.Context) {
	l, _ := f.List(c.GetInt64("list_id"))
	items := l.Items
	if items == nil {
		items = []models.Item{}
	}
	c.JSON(http.StatusOK, items)
}

func (f *FakeAPI) createItem(c *gin.Context) {
	var in models.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil || in.ValidateCreate() != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "name is required"})
		return
	}

	userID := c.GetInt64("user_id")
	f.mu.Lock()
	l := f.lists[c.GetInt64("list_id")]
	f.nextItem++
	now := time.Now().UTC()
	it := models.Item{
		ID:          f.nextItem,
		ListID:      l.ID,
		Name:        in.Name,
		Quantity:    in.Quantity,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		CreatedBy:   &userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.Items = append(l.Items, it)
	f.mu.Unlock()

	f.itemChange(c, "created", it)
	c.JSON(http.StatusCreated, it)
}

// withItem runs fn on the stored item under the lock, answering 404 when it is missing
func (f *FakeAPI) withItem(c *gin.Context, fn func(l *models.ShoppingList, i int)) bool {
	itemID, _ := strconv.ParseInt(c.Param("itemId"), 10, 64)

	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[c.GetInt64("list_id")]
	i := l.FindItem(itemID)
	if i < 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Item %d not found", itemID)})
		return false
	}
	fn(l, i)
	return true
}

func (f *FakeAPI) updateItem(c *gin.Context) {
	var in models.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	var (
		out     models.Item
		recateg bool
	)
	ok := f.withItem(c, func(l *models.ShoppingList, i int) {
		it := &l.Items[i]
		if in.Name != "" {
			it.Name = in.Name
		}
		if in.Quantity != "" {
			it.Quantity = in.Quantity
		}
		if in.Description != "" {
			it.Description = in.Description
		}
		if in.Completed != nil {
			it.Completed = *in.Completed
		}
		if in.CategoryID != nil {
			recateg = it.CategoryID == nil || *it.CategoryID != *in.CategoryID
			it.CategoryID = in.CategoryID
		}
		it.UpdatedAt = time.Now().UTC()
		out = *it
	})
	if !ok {
		return
	}

	event := "updated"
	if recateg {
		event = "category_changed"
	}
	f.itemChange(c, event, out)
	c.JSON(http.StatusOK, out)
}

func (f *FakeAPI) toggleItem(c *gin.Context) {
	var out models.Item
	ok := f.withItem(c, func(l *models.ShoppingList, i int) {
		l.Items[i].Completed = !l.Items[i].Completed
		l.Items[i].UpdatedAt = time.Now().UTC()
		out = l.Items[i]
	})
	if !ok {
		return
	}

	f.itemChange(c, "updated", out)
	c.JSON(http.StatusOK, out)
}

func (f *FakeAPI) deleteItem(c *gin.Context) {
	var out models.Item
	ok := f.withItem(c, func(l *models.ShoppingList, i int) {
		out = l.Items[i]
		l.Items = append(l.Items[:i], l.Items[i+1:]...)
	})
	if !ok {
		return
	}

	f.itemChange(c, "deleted", out)
	c.Status(http.StatusNoContent)
}
