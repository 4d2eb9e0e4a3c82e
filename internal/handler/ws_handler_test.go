package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
)

func TestHandshakeTokenSources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/chat?token=from-query", nil)
	require.Equal(t, "from-query", handshakeToken(r))

	r = httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", handshakeToken(r))

	// Query parameter wins when both are present.
	r = httptest.NewRequest(http.MethodGet, "/ws/chat?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-query", handshakeToken(r))

	r = httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	r.Header.Set("Authorization", "Basic abc")
	require.Empty(t, handshakeToken(r))

	require.Empty(t, handshakeToken(httptest.NewRequest(http.MethodGet, "/ws/chat", nil)))
}

// liveServerFixture runs the full router over httptest with a real gateway and
// coordinator on top of the fake datastore.
func liveServerFixture(t *testing.T, fs *fakeDatastore) (*httptest.Server, *AppDeps) {
	t.Helper()

	deps, _ := testDeps(fs)
	deps.Gateway = chat.NewGateway(fs, deps.Config.BroadcastToSender)
	deps.Coordinator = chat.NewCoordinator(fs, fs, deps.Gateway)
	deps.Notifier = deps.Gateway

	srv := httptest.NewServer(Router(deps))
	t.Cleanup(srv.Close)
	return srv, deps
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat" + query
}

func identityToken(t *testing.T, deps *AppDeps, id int64, username string) string {
	t.Helper()
	token, err := jwt.GenerateToken(&jwt.Payload{UserID: id, Username: username}, deps.Config.JWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func readFrame(t *testing.T, conn *websocket.Conn) chat.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var env chat.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	srv, _ := liveServerFixture(t, &fakeDatastore{})

	res, err := http.Get(srv.URL + "/ws/chat")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestWebSocketRejectsForgedToken(t *testing.T) {
	srv, deps := liveServerFixture(t, &fakeDatastore{})

	forged, err := jwt.GenerateToken(&jwt.Payload{UserID: 7, Username: "alice"}, "other-secret", time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, deps.Config.JWTSecret, "other-secret")

	res, err := http.Get(srv.URL + "/ws/chat?token=" + forged)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestWebSocketRejectsDeletedAccount(t *testing.T) {
	fs := &fakeDatastore{
		userByIDFn: func(_ context.Context, _ int64) (user.User, error) {
			return user.User{}, store.ErrNotFound
		},
	}
	srv, deps := liveServerFixture(t, fs)

	res, err := http.Get(srv.URL + "/ws/chat?token=" + identityToken(t, deps, 7, "ghost"))
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestWebSocketSessionLifecycle(t *testing.T) {
	fs := &fakeDatastore{
		userByIDFn: func(_ context.Context, id int64) (user.User, error) {
			return user.User{ID: id, Username: "alice"}, nil
		},
		isRoomMemberFn: func(_ context.Context, userID, roomID int64) (bool, error) {
			return userID == 7 && roomID == 42, nil
		},
		createMessageFn: func(_ context.Context, text string, userID, roomID int64) (store.Message, error) {
			return store.Message{ID: 1, Text: text, UserID: userID, RoomID: roomID}, nil
		},
	}
	srv, deps := liveServerFixture(t, fs)

	conn, res, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+identityToken(t, deps, 7, "alice")), nil)
	require.NoError(t, err)
	defer conn.Close()
	defer res.Body.Close()

	// Join, then send; the echo broadcast arrives before the acknowledgment.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"joinRoom","payload":{"roomId":42}}`)))

	env := readFrame(t, conn)
	require.Equal(t, chat.EventJoined, env.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sendMessage","payload":{"roomId":42,"text":"hello","tempId":"tmp-1"}}`)))

	env = readFrame(t, conn)
	require.Equal(t, chat.EventNewMessage, env.Type)

	var msg store.Message
	require.NoError(t, json.Unmarshal(env.Payload, &msg))
	require.Equal(t, int64(1), msg.ID)
	require.Equal(t, "hello", msg.Text)

	env = readFrame(t, conn)
	require.Equal(t, chat.EventAck, env.Type)

	var ack chat.AckPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	require.Equal(t, chat.AckStatusOK, ack.Status)
	require.Equal(t, "tmp-1", ack.TempID)

	// A send into a room the user does not belong to is denied in the ack.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sendMessage","payload":{"roomId":99,"text":"hello"}}`)))

	env = readFrame(t, conn)
	require.Equal(t, chat.EventAck, env.Type)
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	require.Equal(t, chat.AckStatusError, ack.Status)
}

func TestRouterProtectsAPIFromAnonymous(t *testing.T) {
	fs := &fakeDatastore{
		roomsForUserFn: func(_ context.Context, userID int64) ([]store.RoomSummary, error) {
			require.Equal(t, int64(7), userID)
			return []store.RoomSummary{}, nil
		},
	}
	srv, deps := liveServerFixture(t, fs)

	res, err := http.Get(srv.URL + "/api/rooms/")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/rooms/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+identityToken(t, deps, 7, "alice"))

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRouterHealthEndpoint(t *testing.T) {
	srv, _ := liveServerFixture(t, &fakeDatastore{})

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	require.Zero(t, env.Code)
}

func TestRouterRejectsExpiredToken(t *testing.T) {
	srv, deps := liveServerFixture(t, &fakeDatastore{})

	expired, err := jwt.GenerateToken(&jwt.Payload{UserID: 7, Username: "alice"}, deps.Config.JWTSecret, -time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/rooms/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+expired)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	// The extractor treats an expired token as anonymous; the handler denies.
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	require.Equal(t, errs.ErrUnauthenticated, env.Code)
}
