package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/model"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Deliver(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeSender struct {
	to   tele.Recipient
	what interface{}
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.to, f.what = to, what
	return &tele.Message{}, f.err
}

func TestEmitter_DeliversToEverySink(t *testing.T) {
	failing := &recordingSink{err: errors.New("push gateway down")}
	ok := &recordingSink{}
	em := NewEmitter(4, failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	go em.Run(ctx)

	assert.True(t, em.Emit(Event{AccountID: 1, Delta: 5, Reason: model.ReasonWager, NewBalance: 5}))

	require.Eventually(t, func() bool { return ok.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, failing.count())

	cancel()
	<-em.Done()
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	em := NewEmitter(2, sink)

	// No worker running, so the queue fills up.
	assert.True(t, em.Emit(Event{AccountID: 1}))
	assert.True(t, em.Emit(Event{AccountID: 2}))
	assert.False(t, em.Emit(Event{AccountID: 3}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	em.Run(ctx)

	assert.Equal(t, 2, sink.count())
}

func TestTelegramSink_Deliver(t *testing.T) {
	sender := &fakeSender{}
	sink := NewTelegramSink(sender)

	err := sink.Deliver(context.Background(), Event{AccountID: 77, Delta: -100, Reason: model.ReasonWager, NewBalance: 900})
	require.NoError(t, err)
	assert.Equal(t, tele.ChatID(77), sender.to)
	assert.Equal(t, "💰 Wager settled: -100\nBalance: 900", sender.what)

	sender.err = errors.New("blocked by user")
	assert.Error(t, sink.Deliver(context.Background(), Event{AccountID: 77}))
}

func TestFormatEvent_UnknownReason(t *testing.T) {
	assert.Equal(t, "💰 BONUS: +3\nBalance: 3", FormatEvent(Event{Delta: 3, Reason: "BONUS", NewBalance: 3}))
}
