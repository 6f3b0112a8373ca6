package eventfabric

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	code   int
	fail   bool
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return assert.AnError
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSender) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.code = code
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestAttachEvictsPriorSession(t *testing.T) {
	fabric := New(300 * time.Millisecond)
	duel := uuid.New()
	participant := uuid.New()

	first := &fakeSender{}
	fabric.Attach(duel, participant, first)

	second := &fakeSender{}
	fabric.Attach(duel, participant, second)

	assert.True(t, first.closed)
	assert.Equal(t, CloseReplaced, first.code)
}

func TestBroadcastExcludesAuthorAndDetachesDeadSessions(t *testing.T) {
	fabric := New(0)
	duel := uuid.New()

	author := uuid.New()
	authorConn := &fakeSender{}
	fabric.Attach(duel, author, authorConn)

	live := uuid.New()
	liveConn := &fakeSender{}
	fabric.Attach(duel, live, liveConn)

	dead := uuid.New()
	deadConn := &fakeSender{fail: true}
	fabric.Attach(duel, dead, deadConn)

	fabric.Broadcast(duel, PingMessage(), author)

	// The ping skips the author; detaching the dead session then sends a
	// user_status "disconnected" message to both remaining sessions.
	assert.Equal(t, 1, authorConn.count())
	assert.Equal(t, 2, liveConn.count())

	err := fabric.SendToParticipant(duel, dead, PingMessage())
	require.Error(t, err)
}

func TestSendCodeUpdateDebounces(t *testing.T) {
	fabric := New(50 * time.Millisecond)
	duel := uuid.New()

	author := uuid.New()
	fabric.Attach(duel, author, &fakeSender{})

	peer := uuid.New()
	peerConn := &fakeSender{}
	fabric.Attach(duel, peer, peerConn)

	fabric.SendCodeUpdate(duel, author, CodeUpdateMessage(author, "a", "python", nil))
	fabric.SendCodeUpdate(duel, author, CodeUpdateMessage(author, "ab", "python", nil))
	assert.Equal(t, 1, peerConn.count())

	time.Sleep(60 * time.Millisecond)
	fabric.SendCodeUpdate(duel, author, CodeUpdateMessage(author, "abc", "python", nil))
	assert.Equal(t, 2, peerConn.count())
}
