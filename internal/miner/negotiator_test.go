package miner

import (
	"context"
	"testing"
	"time"

	"github.com/djkazic/ducominer/internal/pacer"
	"github.com/djkazic/ducominer/internal/protocol"
	"github.com/djkazic/ducominer/internal/session"
	"github.com/djkazic/ducominer/internal/telemetry"
	"github.com/djkazic/ducominer/pkg/util"
	"github.com/djkazic/ducominer/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNegotiator(t *testing.T, coord *testutil.Coordinator) (*Negotiator, *session.Session, *telemetry.Shared) {
	t.Helper()
	sess := session.New(pacer.New(10*time.Millisecond, nil), zap.NewNop())
	sess.GreetingTimeout = 300 * time.Millisecond
	t.Cleanup(sess.Close)

	_, err := sess.Connect(context.Background(), coord.Host(), coord.Port(), time.Second)
	require.NoError(t, err)

	shared := telemetry.New(1)
	return &Negotiator{
		session: sess,
		cfg:     testConfig(coord),
		shared:  shared,
		timeout: 300 * time.Millisecond,
		logger:  zap.NewNop(),
	}, sess, shared
}

func TestAskForJob(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	coord.JobReply = testutil.JobLine(testutil.SampleBlockHash, 9, 6) + "\r"

	n, sess, shared := newNegotiator(t, coord)

	job, err := n.AskForJob(context.Background())
	require.NoError(t, err)
	require.Equal(t, testutil.SampleBlockHash, job.LastBlockHash)
	require.Equal(t, testutil.ExpectedHashFor(testutil.SampleBlockHash, 9), job.ExpectedHash)
	require.Equal(t, testutil.MustDecodeHash(t, util.EncodeHash(job.ExpectedHash)), job.ExpectedHash)
	require.Equal(t, uint64(601), job.Difficulty)
	require.Equal(t, uint64(601), shared.Difficulty())
	require.True(t, sess.Connected())
}

func TestAskForJob_TwoFieldsClosesSession(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	coord.JobReply = testutil.SampleBlockHash + "," + testutil.SampleBlockHash

	n, sess, shared := newNegotiator(t, coord)

	_, err := n.AskForJob(context.Background())
	require.ErrorIs(t, err, protocol.ErrJobFormat)
	require.False(t, sess.Connected())
	require.Equal(t, uint64(0), shared.Difficulty())
}

func TestAskForJob_BadDifficulty(t *testing.T) {
	coord := testutil.NewCoordinator(t)
	coord.JobReply = testutil.SampleBlockHash + "," + testutil.SampleBlockHash + ",abc"

	n, sess, _ := newNegotiator(t, coord)

	_, err := n.AskForJob(context.Background())
	require.ErrorIs(t, err, protocol.ErrDifficultyInvalid)
	require.False(t, sess.Connected())
}
