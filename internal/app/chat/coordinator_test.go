package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
)

// sendFixture wires a coordinator with one sender and one recipient already
// subscribed to room 42.
type sendFixture struct {
	membership *fakeMembership
	messages   *fakeMessageStore
	gateway    *Gateway
	co         *Coordinator
	sender     *Client
	recipient  *Client
}

func newSendFixture(t *testing.T, echoSender bool) *sendFixture {
	t.Helper()

	membership := newFakeMembership()
	membership.allow(1, 42)
	membership.allow(2, 42)

	messages := &fakeMessageStore{}
	g := NewGateway(membership, echoSender)
	co := NewCoordinator(membership, messages, g)

	sender := connectedClient(g, co, user.User{ID: 1, Username: "alice"})
	recipient := connectedClient(g, co, user.User{ID: 2, Username: "bob"})

	ctx := context.Background()
	require.Nil(t, g.Join(ctx, sender, 42))
	require.Nil(t, g.Join(ctx, recipient, 42))

	return &sendFixture{
		membership: membership,
		messages:   messages,
		gateway:    g,
		co:         co,
		sender:     sender,
		recipient:  recipient,
	}
}

func TestSendRejectsEmptyTextBeforeStore(t *testing.T) {
	f := newSendFixture(t, true)

	_, sendErr := f.co.Send(context.Background(), f.sender.User(), 42, "")

	require.NotNil(t, sendErr)
	require.Equal(t, errs.ErrMessageEmpty, sendErr.Code)
	require.Zero(t, f.messages.createdCount())
	requireNoEvent(t, f.recipient)
}

func TestSendRejectsOverlongTextBeforeStore(t *testing.T) {
	f := newSendFixture(t, true)

	text := strings.Repeat("a", MaxMessageBytes+1)
	_, sendErr := f.co.Send(context.Background(), f.sender.User(), 42, text)

	require.NotNil(t, sendErr)
	require.Equal(t, errs.ErrMessageTooLong, sendErr.Code)
	require.Zero(t, f.messages.createdCount())
	requireNoEvent(t, f.recipient)
}

func TestSendDeniedForNonMember(t *testing.T) {
	f := newSendFixture(t, true)
	outsider := user.User{ID: 9, Username: "mallory"}

	_, sendErr := f.co.Send(context.Background(), outsider, 42, "hi")

	require.NotNil(t, sendErr)
	require.Equal(t, errs.ErrRoomForbidden, sendErr.Code)
	require.Zero(t, f.messages.createdCount())
	requireNoEvent(t, f.recipient)
}

func TestSendStoreFailureMeansNoBroadcast(t *testing.T) {
	f := newSendFixture(t, true)
	f.messages.err = errors.New("deadline exceeded")

	_, sendErr := f.co.Send(context.Background(), f.sender.User(), 42, "hi")

	require.NotNil(t, sendErr)
	require.Equal(t, errs.ErrStoreUnavailable, sendErr.Code)
	requireNoEvent(t, f.recipient)
	requireNoEvent(t, f.sender)
}

func TestSendChecksMembershipBeforePersisting(t *testing.T) {
	f := newSendFixture(t, true)

	var calls []string
	f.membership.calls = &calls
	f.messages.calls = &calls

	_, sendErr := f.co.Send(context.Background(), f.sender.User(), 42, "hi")

	require.Nil(t, sendErr)
	require.Equal(t, []string{"membership", "persist"}, calls)
}

func TestSendPersistsThenBroadcastsCanonicalMessage(t *testing.T) {
	f := newSendFixture(t, true)

	msg, sendErr := f.co.Send(context.Background(), f.sender.User(), 42, "hello there")

	require.Nil(t, sendErr)
	require.Equal(t, int64(1), msg.ID)
	require.Equal(t, "hello there", msg.Text)
	require.Equal(t, f.sender.User(), msg.Author)

	eventType, payloadBytes := nextEvent(t, f.recipient)
	require.Equal(t, EventNewMessage, eventType)

	var received store.Message
	require.NoError(t, json.Unmarshal(payloadBytes, &received))
	require.Equal(t, msg.ID, received.ID)
	require.Equal(t, "hello there", received.Text)
	require.Equal(t, "alice", received.Author.Username)
}

func TestSendEchoesToSenderWhenEnabled(t *testing.T) {
	f := newSendFixture(t, true)

	_, sendErr := f.co.Send(context.Background(), f.sender.User(), 42, "hi")
	require.Nil(t, sendErr)

	eventType, _ := nextEvent(t, f.sender)
	require.Equal(t, EventNewMessage, eventType)

	eventType, _ = nextEvent(t, f.recipient)
	require.Equal(t, EventNewMessage, eventType)
}

func TestSendSkipsSenderWhenEchoDisabled(t *testing.T) {
	f := newSendFixture(t, false)

	msg, sendErr := f.co.Send(context.Background(), f.sender.User(), 42, "hi")
	require.Nil(t, sendErr)
	require.Equal(t, int64(1), msg.ID)

	requireNoEvent(t, f.sender)

	eventType, _ := nextEvent(t, f.recipient)
	require.Equal(t, EventNewMessage, eventType)
}

func TestTypingBroadcastExcludesSender(t *testing.T) {
	f := newSendFixture(t, true)

	typingErr := f.co.Typing(context.Background(), f.sender.User(), 42, true)
	require.Nil(t, typingErr)

	requireNoEvent(t, f.sender)

	eventType, payloadBytes := nextEvent(t, f.recipient)
	require.Equal(t, EventUserTyping, eventType)

	var payload UserTypingPayload
	require.NoError(t, json.Unmarshal(payloadBytes, &payload))
	require.Equal(t, int64(42), payload.RoomID)
	require.Equal(t, int64(1), payload.UserID)
	require.Equal(t, "alice", payload.Username)
	require.True(t, payload.IsTyping)

	require.Zero(t, f.messages.createdCount())
}

func TestTypingDeniedForNonMember(t *testing.T) {
	f := newSendFixture(t, true)
	outsider := user.User{ID: 9, Username: "mallory"}

	typingErr := f.co.Typing(context.Background(), outsider, 42, true)

	require.NotNil(t, typingErr)
	require.Equal(t, errs.ErrRoomForbidden, typingErr.Code)
	requireNoEvent(t, f.recipient)
}
