package command

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/internal/logger"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type ChannelTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
}

func TestChannelSuite(t *testing.T) {
	suite.Run(t, new(ChannelTestSuite))
}

func (suite *ChannelTestSuite) SetupTest() {
	suite.ctx, suite.cancel = context.WithTimeout(context.Background(), 5*time.Second)
}

func (suite *ChannelTestSuite) TearDownTest() {
	suite.cancel()
}

func (suite *ChannelTestSuite) serve(handler Handler) (*Sender, context.CancelFunc, <-chan struct{}) {
	sender, receiver := NewChannel(4, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(suite.ctx)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		receiver.Serve(ctx, handler)
	}()

	return sender, cancel, finished
}

func (suite *ChannelTestSuite) TestConcurrentRequestsEachGetOneAnswer() {
	const n = 200

	var handled atomic.Int32

	router := NewRouter()
	Handle(router, "double", func(_ context.Context, x int) (int, error) {
		handled.Add(1)

		return x * 2, nil
	})

	sender, stop, _ := suite.serve(router.Serve)
	defer stop()

	results := make([]int, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Request[int, int](suite.ctx, sender, "double", i)
		}(i)
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		suite.NoError(errs[i])
		suite.Equal(i*2, results[i])
	}

	suite.Equal(int32(n), handled.Load())
}

func (suite *ChannelTestSuite) TestRespondIsExactlyOnce() {
	cmd := New[string, int]("k", "p")

	suite.NoError(cmd.Succeed(1))
	suite.ErrorIs(cmd.Succeed(2), ErrAlreadyResponded)
	cmd.Fail(errors.New(errors.ErrCodeInternal, "late"))
	cmd.Drop()
	suite.True(cmd.Responded())

	resp, err := cmd.Await(suite.ctx, nil)
	suite.NoError(err)
	suite.True(resp.Success)
	suite.Equal(1, resp.Payload.Unwrap())

	select {
	case <-cmd.reply:
		suite.Fail("a second response was delivered")
	default:
	}
}

func (suite *ChannelTestSuite) TestFailedResponseKeepsOriginalCode() {
	router := NewRouter()
	Handle(router, "lookup", func(_ context.Context, key string) (string, error) {
		return "", errors.Newf(errors.ErrCodeCacheKeyNotFound, "key %s not found", key)
	})

	sender, stop, _ := suite.serve(router.Serve)
	defer stop()

	_, err := Request[string, string](suite.ctx, sender, "lookup", "kline|x")
	suite.Error(err)
	suite.Equal(errors.ErrCodeCommandFailed, errors.GetCode(err))
	suite.Equal(
		[]errors.ErrorCode{errors.ErrCodeCommandFailed, errors.ErrCodeCacheKeyNotFound},
		errors.CodeChain(err),
	)
}

func (suite *ChannelTestSuite) TestUnansweredCommandIsFailed() {
	sender, stop, _ := suite.serve(func(context.Context, Envelope) {})
	defer stop()

	_, err := Request[int, int](suite.ctx, sender, "forgotten", 1)
	suite.True(errors.HasCode(err, errors.ErrCodeCommandUnhandled))
}

func (suite *ChannelTestSuite) TestUnknownKindIsFailed() {
	sender, stop, _ := suite.serve(NewRouter().Serve)
	defer stop()

	_, err := Request[int, int](suite.ctx, sender, "unknown", 1)
	suite.True(errors.HasCode(err, errors.ErrCodeCommandUnhandled))
}

func (suite *ChannelTestSuite) TestTypeMismatchIsFailed() {
	router := NewRouter()
	Handle(router, "k", func(_ context.Context, x int) (int, error) { return x, nil })

	sender, stop, _ := suite.serve(router.Serve)
	defer stop()

	_, err := Request[string, int](suite.ctx, sender, "k", "not an int")
	suite.True(errors.HasCode(err, errors.ErrCodeCommandTypeMismatch))
}

func (suite *ChannelTestSuite) TestHandlerPanicIsAnswered() {
	sender, stop, _ := suite.serve(func(context.Context, Envelope) {
		panic("boom")
	})
	defer stop()

	_, err := Request[int, int](suite.ctx, sender, "explode", 1)
	suite.True(errors.HasCode(err, errors.ErrCodeInternal))

	// the loop survives the panic
	_, err = Request[int, int](suite.ctx, sender, "explode", 2)
	suite.True(errors.HasCode(err, errors.ErrCodeInternal))
}

func (suite *ChannelTestSuite) TestQueuedCommandsSeeOwnerGone() {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	sender, stop, finished := suite.serve(func(_ context.Context, env Envelope) {
		started <- struct{}{}
		<-release
		env.Fail(errors.New(errors.ErrCodeInternal, "shutting down"))
	})

	first := make(chan error, 1)
	go func() {
		_, err := Request[int, int](suite.ctx, sender, "slow", 1)
		first <- err
	}()

	<-started

	queued := make(chan error, 1)
	go func() {
		_, err := Request[int, int](suite.ctx, sender, "queued", 2)
		queued <- err
	}()

	time.Sleep(20 * time.Millisecond)
	stop()
	close(release)
	<-finished

	suite.True(errors.HasCode(<-first, errors.ErrCodeCommandFailed))
	suite.ErrorIs(<-queued, ErrOwnerGone)

	_, err := Request[int, int](suite.ctx, sender, "after", 3)
	suite.ErrorIs(err, ErrOwnerGone)
}

func (suite *ChannelTestSuite) TestDroppedCommandSurfacesOwnerGone() {
	cmd := New[int, int]("k", 1)
	cmd.Drop()

	_, err := cmd.Await(suite.ctx, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeOwnerGone))
	suite.False(cmd.Responded())
}

func (suite *ChannelTestSuite) TestRequestHonoursContext() {
	sender, _ := NewChannel(1, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(suite.ctx, 20*time.Millisecond)
	defer cancel()

	_, err := Request[int, int](ctx, sender, "nobody", 1)
	suite.ErrorIs(err, context.DeadlineExceeded)
}
