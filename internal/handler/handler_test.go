package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/auth/jwt"
)

// errNotStubbed is returned by fake methods a test did not stub. Handlers
// surface it as a transient store failure, so a test that forgets a stub
// fails loudly instead of passing by accident.
var errNotStubbed = errors.New("fake method not stubbed")

// fakeDatastore implements Datastore with per-method stub functions.
type fakeDatastore struct {
	createUserFn            func(ctx context.Context, username, passwordHash string) (user.User, error)
	userByIDFn              func(ctx context.Context, id int64) (user.User, error)
	credentialsByUsernameFn func(ctx context.Context, username string) (store.Credentials, error)
	searchUsersFn           func(ctx context.Context, query string, excludeID int64, limit int) ([]user.User, error)
	createRoomFn            func(ctx context.Context, name string, isGroup bool, inviteCode *string, creatorID int64) (store.Room, error)
	roomByIDFn              func(ctx context.Context, id int64) (store.Room, error)
	roomByInviteCodeFn      func(ctx context.Context, code string) (store.Room, error)
	roomsForUserFn          func(ctx context.Context, userID int64) ([]store.RoomSummary, error)
	roomMembersFn           func(ctx context.Context, roomID int64) ([]user.User, error)
	isRoomMemberFn          func(ctx context.Context, userID, roomID int64) (bool, error)
	addParticipantFn        func(ctx context.Context, userID, roomID int64) (bool, error)
	findPrivateRoomFn       func(ctx context.Context, a, b int64) (store.Room, error)
	createPrivateRoomFn     func(ctx context.Context, a, b int64) (store.Room, error)
	messagesForRoomFn       func(ctx context.Context, roomID int64, limit, offset int) ([]store.Message, error)
	createMessageFn         func(ctx context.Context, text string, userID, roomID int64) (store.Message, error)
}

func (f *fakeDatastore) CreateUser(ctx context.Context, username, passwordHash string) (user.User, error) {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, username, passwordHash)
	}
	return user.User{}, errNotStubbed
}

func (f *fakeDatastore) UserByID(ctx context.Context, id int64) (user.User, error) {
	if f.userByIDFn != nil {
		return f.userByIDFn(ctx, id)
	}
	return user.User{}, errNotStubbed
}

func (f *fakeDatastore) CredentialsByUsername(ctx context.Context, username string) (store.Credentials, error) {
	if f.credentialsByUsernameFn != nil {
		return f.credentialsByUsernameFn(ctx, username)
	}
	return store.Credentials{}, errNotStubbed
}

func (f *fakeDatastore) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]user.User, error) {
	if f.searchUsersFn != nil {
		return f.searchUsersFn(ctx, query, excludeID, limit)
	}
	return nil, errNotStubbed
}

func (f *fakeDatastore) CreateRoom(ctx context.Context, name string, isGroup bool, inviteCode *string, creatorID int64) (store.Room, error) {
	if f.createRoomFn != nil {
		return f.createRoomFn(ctx, name, isGroup, inviteCode, creatorID)
	}
	return store.Room{}, errNotStubbed
}

func (f *fakeDatastore) RoomByID(ctx context.Context, id int64) (store.Room, error) {
	if f.roomByIDFn != nil {
		return f.roomByIDFn(ctx, id)
	}
	return store.Room{}, errNotStubbed
}

func (f *fakeDatastore) RoomByInviteCode(ctx context.Context, code string) (store.Room, error) {
	if f.roomByInviteCodeFn != nil {
		return f.roomByInviteCodeFn(ctx, code)
	}
	return store.Room{}, errNotStubbed
}

func (f *fakeDatastore) RoomsForUser(ctx context.Context, userID int64) ([]store.RoomSummary, error) {
	if f.roomsForUserFn != nil {
		return f.roomsForUserFn(ctx, userID)
	}
	return nil, errNotStubbed
}

func (f *fakeDatastore) RoomMembers(ctx context.Context, roomID int64) ([]user.User, error) {
	if f.roomMembersFn != nil {
		return f.roomMembersFn(ctx, roomID)
	}
	return nil, errNotStubbed
}

func (f *fakeDatastore) IsRoomMember(ctx context.Context, userID, roomID int64) (bool, error) {
	if f.isRoomMemberFn != nil {
		return f.isRoomMemberFn(ctx, userID, roomID)
	}
	return false, errNotStubbed
}

func (f *fakeDatastore) AddParticipant(ctx context.Context, userID, roomID int64) (bool, error) {
	if f.addParticipantFn != nil {
		return f.addParticipantFn(ctx, userID, roomID)
	}
	return false, errNotStubbed
}

func (f *fakeDatastore) FindPrivateRoom(ctx context.Context, a, b int64) (store.Room, error) {
	if f.findPrivateRoomFn != nil {
		return f.findPrivateRoomFn(ctx, a, b)
	}
	return store.Room{}, errNotStubbed
}

func (f *fakeDatastore) CreatePrivateRoom(ctx context.Context, a, b int64) (store.Room, error) {
	if f.createPrivateRoomFn != nil {
		return f.createPrivateRoomFn(ctx, a, b)
	}
	return store.Room{}, errNotStubbed
}

func (f *fakeDatastore) MessagesForRoom(ctx context.Context, roomID int64, limit, offset int) ([]store.Message, error) {
	if f.messagesForRoomFn != nil {
		return f.messagesForRoomFn(ctx, roomID, limit, offset)
	}
	return nil, errNotStubbed
}

func (f *fakeDatastore) CreateMessage(ctx context.Context, text string, userID, roomID int64) (store.Message, error) {
	if f.createMessageFn != nil {
		return f.createMessageFn(ctx, text, userID, roomID)
	}
	return store.Message{}, errNotStubbed
}

// recordingNotifier captures NotifyUser calls.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

type notification struct {
	UserID int64
	Event  chat.ServerEvent
}

func (n *recordingNotifier) NotifyUser(userID int64, event chat.ServerEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{UserID: userID, Event: event})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.events...)
}

func testDeps(fs *fakeDatastore) (*AppDeps, *recordingNotifier) {
	notifier := &recordingNotifier{}
	deps := &AppDeps{
		Config: &configs.AppConfig{
			Environment:       "development",
			Port:              8080,
			JWTSecret:         "test-secret",
			BroadcastToSender: true,
		},
		Store:    fs,
		Notifier: notifier,
	}
	return deps, notifier
}

// asUser attaches an authenticated identity to the request, the same way the
// identity extractor middleware does after validating a token.
func asUser(r *http.Request, id int64, username string) *http.Request {
	payload := &jwt.Payload{UserID: id, Username: username}
	return r.WithContext(context.WithValue(r.Context(), jwt.ContextAuthPayloadKey, payload))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// envelope mirrors the JSON response envelope for assertions.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Zero(t, env.Code, "expected success envelope, got: %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
	return env
}
