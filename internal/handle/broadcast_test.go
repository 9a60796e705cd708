package handle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type BroadcastTestSuite struct {
	suite.Suite
}

func TestBroadcastSuite(t *testing.T) {
	suite.Run(t, new(BroadcastTestSuite))
}

func (suite *BroadcastTestSuite) TestFanOutPreservesOrder() {
	b := NewBroadcast[int](8)
	first := b.Subscribe("a")
	second := b.Subscribe("b")

	suite.Equal(2, b.Send(1))
	b.Send(2)
	b.Send(3)

	ctx := context.Background()
	for _, sub := range []*Subscription[int]{first, second} {
		for want := 1; want <= 3; want++ {
			got, err := sub.Recv(ctx)
			suite.NoError(err)
			suite.Equal(want, got)
		}
	}
}

func (suite *BroadcastTestSuite) TestSlowSubscriberLagsAndResumes() {
	b := NewBroadcast[int](3)
	sub := b.Subscribe("slow")

	for i := 1; i <= 5; i++ {
		b.Send(i)
	}

	ctx := context.Background()

	_, err := sub.Recv(ctx)
	suite.True(IsLagged(err))
	suite.True(errors.HasCode(err, errors.ErrCodeLagged))

	var lagged *LaggedError
	suite.True(errors.As(err, &lagged))
	suite.Equal(uint64(2), lagged.Missed)

	for want := 3; want <= 5; want++ {
		got, err := sub.Recv(ctx)
		suite.NoError(err)
		suite.Equal(want, got)
	}
}

func (suite *BroadcastTestSuite) TestCloseDrainsThenReportsClosed() {
	b := NewBroadcast[string](4)
	sub := b.Subscribe("x")

	b.Send("last")
	b.Close()
	b.Close()

	got, err := sub.Recv(context.Background())
	suite.NoError(err)
	suite.Equal("last", got)

	_, err = sub.Recv(context.Background())
	suite.True(IsClosed(err))
	suite.True(errors.HasCode(err, errors.ErrCodeChannelClosed))

	suite.Equal(0, b.Send("dropped"))

	late := b.Subscribe("late")
	_, err = late.Recv(context.Background())
	suite.True(IsClosed(err))
}

func (suite *BroadcastTestSuite) TestCancellationWinsOverBlockedRecv() {
	b := NewBroadcast[int](1)
	sub := b.Subscribe("idle")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		_, err := sub.Recv(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		suite.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		suite.Fail("recv did not observe cancellation")
	}
}

func (suite *BroadcastTestSuite) TestCanceledContextBeatsBufferedEvent() {
	b := NewBroadcast[int](2)
	sub := b.Subscribe("x")
	b.Send(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sub.Recv(ctx)
	suite.ErrorIs(err, context.Canceled)
	suite.Equal(1, sub.Len())
}

func (suite *BroadcastTestSuite) TestUnsubscribe() {
	b := NewBroadcast[int](2)
	sub := b.Subscribe("x")
	suite.Equal(1, b.SubscriberCount())

	sub.Unsubscribe()
	suite.Equal(0, b.SubscriberCount())
	suite.Equal(0, b.Send(1))

	_, err := sub.Recv(context.Background())
	suite.True(IsClosed(err))
}

func (suite *BroadcastTestSuite) TestConcurrentSendersDeliverEverything() {
	b := NewBroadcast[int](1000)
	sub := b.Subscribe("x")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 100; i++ {
				b.Send(i)
			}
		}()
	}

	wg.Wait()
	suite.Equal(400, sub.Len())

	_, ok := sub.TryRecv()
	suite.True(ok)
}
