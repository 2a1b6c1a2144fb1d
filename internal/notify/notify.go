// Package notify delivers post-commit balance events to push channels.
//
// Emission is fire-and-forget: Emit never blocks, a full queue drops the
// event, and sink failures are logged and otherwise ignored. Nothing here can
// affect the outcome of a committed ledger operation.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"credit-ledger/internal/model"
)

// Event is a committed balance change.
type Event struct {
	AccountID  int64
	Delta      int64
	Reason     model.Reason
	NewBalance int64
}

// Sink delivers one event.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

// Emitter queues events and fans them out to sinks on a worker goroutine.
type Emitter struct {
	queue chan Event
	sinks []Sink

	once sync.Once
	done chan struct{}
}

// NewEmitter creates an Emitter with a queue of bufferSize events.
func NewEmitter(bufferSize int, sinks ...Sink) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Emitter{
		queue: make(chan Event, bufferSize),
		sinks: sinks,
		done:  make(chan struct{}),
	}
}

// Emit enqueues e without blocking. It reports whether e was queued.
func (em *Emitter) Emit(e Event) bool {
	select {
	case em.queue <- e:
		return true
	default:
		log.Warn().
			Int64("account_id", e.AccountID).
			Int64("delta", e.Delta).
			Str("reason", string(e.Reason)).
			Msg("Notification queue full, dropping event")
		return false
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// already queued and returns.
func (em *Emitter) Run(ctx context.Context) {
	defer em.once.Do(func() { close(em.done) })

	for {
		select {
		case e := <-em.queue:
			em.deliver(ctx, e)
		case <-ctx.Done():
			drain := context.WithoutCancel(ctx)
			for {
				select {
				case e := <-em.queue:
					em.deliver(drain, e)
				default:
					return
				}
			}
		}
	}
}

// Done is closed when Run has returned.
func (em *Emitter) Done() <-chan struct{} {
	return em.done
}

func (em *Emitter) deliver(ctx context.Context, e Event) {
	for _, s := range em.sinks {
		if err := s.Deliver(ctx, e); err != nil {
			log.Warn().
				Err(err).
				Int64("account_id", e.AccountID).
				Str("reason", string(e.Reason)).
				Msg("Notification delivery failed")
		}
	}
}

// LogSink writes events to the structured log.
type LogSink struct{}

// Deliver logs e at debug level.
func (LogSink) Deliver(_ context.Context, e Event) error {
	log.Debug().
		Int64("account_id", e.AccountID).
		Int64("delta", e.Delta).
		Str("reason", string(e.Reason)).
		Int64("new_balance", e.NewBalance).
		Msg("Balance changed")
	return nil
}

// Sender sends a Telegram message. *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramSink pushes events to the account owner's private chat. Account
// ids are Telegram user ids.
type TelegramSink struct {
	sender Sender
}

// NewTelegramSink creates a TelegramSink.
func NewTelegramSink(sender Sender) *TelegramSink {
	return &TelegramSink{sender: sender}
}

// Deliver sends a short balance message.
func (s *TelegramSink) Deliver(_ context.Context, e Event) error {
	if _, err := s.sender.Send(tele.ChatID(e.AccountID), FormatEvent(e)); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

var reasonLabels = map[model.Reason]string{
	model.ReasonOpening:         "Opening credit",
	model.ReasonWager:           "Wager settled",
	model.ReasonPromotionDebit:  "Promotion payout",
	model.ReasonPromotionCredit: "Promotion reward",
	model.ReasonAdminAdjust:     "Balance adjusted",
	model.ReasonReferralPayout:  "Referral reward",
}

// FormatEvent renders e for a chat message.
func FormatEvent(e Event) string {
	label, ok := reasonLabels[e.Reason]
	if !ok {
		label = string(e.Reason)
	}
	return fmt.Sprintf("💰 %s: %+d\nBalance: %d", label, e.Delta, e.NewBalance)
}
