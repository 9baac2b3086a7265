package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/djkazic/ducominer/internal/pacer"
	"github.com/djkazic/ducominer/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSession() *Session {
	s := New(pacer.New(20*time.Millisecond, nil), zap.NewNop())
	s.GreetingTimeout = 300 * time.Millisecond
	return s
}

func TestConnect_ReadsGreeting(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	coord.Greeting = "3.0\r"

	s := newSession()
	defer s.Close()

	dialed, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)
	require.True(t, dialed)
	require.Equal(t, "3.0", s.Greeting())
	require.True(t, s.Alive())
}

func TestConnect_ReusesLiveConnection(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	s := newSession()
	defer s.Close()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)

	dialed, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)
	require.False(t, dialed)
	require.Equal(t, 1, coord.Connects())
}

func TestConnect_SilentPeerIsHandshakeTimeout(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	coord.Silent = true

	s := newSession()
	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.ErrorIs(t, err, ErrHandshakeTimeout)
	require.False(t, s.Connected())
}

func TestConnect_RefusedIsConnectTimeout(t *testing.T) {
	// Grab a free port, then close it so nothing listens there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	s := newSession()
	start := time.Now()
	_, err = s.Connect(context.Background(), "127.0.0.1", port, 300*time.Millisecond)
	require.ErrorIs(t, err, ErrConnectTimeout)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestWaitForLine_SplitAcrossWrites(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	s := newSession()
	s.conn = client
	s.reader = bufio.NewReader(client)
	defer s.Close()

	go func() {
		server.Write([]byte("ab"))
		time.Sleep(50 * time.Millisecond)
		server.Write([]byte("cd\r\n"))
	}()

	line, err := s.WaitForLine(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "abcd", line)
}

func TestWaitForLine_Timeout(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	s := newSession()
	defer s.Close()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = s.WaitForLine(context.Background(), 100*time.Millisecond)
	require.ErrorIs(t, err, ErrLineTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestWaitForLine_Dropped(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	s := newSession()
	defer s.Close()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)

	coord.DropAll()
	_, err = s.WaitForLine(context.Background(), time.Second)
	require.ErrorIs(t, err, ErrConnectionDropped)
}

func TestWaitForLine_NotConnected(t *testing.T) {
	s := newSession()
	_, err := s.WaitForLine(context.Background(), time.Second)
	require.ErrorIs(t, err, ErrConnectionDropped)
}

func TestSendAndReply(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	coord.JobReply = "reply"

	s := newSession()
	defer s.Close()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Send("JOB,user,ESP32,key\n"))

	line, err := s.WaitForLine(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "reply", line)
	require.Equal(t, []string{"JOB,user,ESP32,key"}, coord.Lines())
}

func TestAlive_DetectsDrop(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	s := newSession()
	defer s.Close()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)
	require.True(t, s.Alive())

	coord.DropAll()
	require.Eventually(t, func() bool { return !s.Alive() }, time.Second, 10*time.Millisecond)
}

func TestAlive_DetectsDropImmediately(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	s := newSession()
	defer s.Close()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)

	coord.DropAll()
	time.Sleep(50 * time.Millisecond)
	require.False(t, s.Alive(), "one check after the peer closed must report the drop")
}

func TestAlive_KeepsBufferedData(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	coord.JobReply = "job"
	s := newSession()
	defer s.Close()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Send("JOB,a,b,c\n"))

	// Alive peeks the reply into the buffer without consuming it.
	require.Eventually(t, func() bool {
		require.True(t, s.Alive())
		return s.reader.Buffered() > 0
	}, time.Second, 5*time.Millisecond)

	line, err := s.WaitForLine(context.Background(), 300*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "job", line)
}

func TestConnect_RedialsAfterDrop(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	s := newSession()
	defer s.Close()

	dialed, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)
	require.True(t, dialed)

	coord.DropAll()
	time.Sleep(50 * time.Millisecond)

	dialed, err = s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)
	require.True(t, dialed, "a dropped connection must not be reused")
	require.Equal(t, 2, coord.Connects())
}

func TestClose_ResetsState(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	s := newSession()

	_, err := s.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)

	s.Close()
	require.False(t, s.Connected())
	require.False(t, s.Alive())
	require.Empty(t, s.Greeting())
	require.True(t, errors.Is(s.Send("x\n"), ErrConnectionDropped))
	require.True(t, coord.WaitDisconnects(1, time.Second), "server should observe the close on port "+strconv.Itoa(coord.Port()))
}
