// Package notify posts waitlist and booking events to the managers'
// Telegram chats.
package notify

import (
	"context"
	"fmt"

	"tischbuch/internal/booking"
	"tischbuch/internal/events"
	"tischbuch/internal/waitlist"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const queueSize = 64

// TelegramSender is the part of the bot API the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Subscriber registers event handlers.
type Subscriber interface {
	Subscribe(eventType string, handler events.EventHandler)
}

// NewTelegramSender connects to the bot API.
func NewTelegramSender(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return api, nil
}

// Notifier formats domain events for staff. Event handlers only queue the
// text; Run delivers it so publishers never wait on Telegram.
type Notifier struct {
	sender TelegramSender
	chats  []int64
	retry  RetryConfig
	queue  chan string
	logger zerolog.Logger
}

func NewNotifier(sender TelegramSender, chats []int64, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chats:  chats,
		retry:  DefaultRetryConfig(),
		queue:  make(chan string, queueSize),
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Attach subscribes the notifier to the events staff care about.
func (n *Notifier) Attach(bus Subscriber) {
	bus.Subscribe(events.TypeWaitlistOffered, n.onOffered)
	bus.Subscribe(events.TypeWaitlistExpired, n.onExpired)
	bus.Subscribe(events.TypeGuardRejected, n.onRejected)
}

// Run delivers queued messages until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			if err := n.broadcast(ctx, text); err != nil {
				n.logger.Warn().Err(err).Msg("notification not delivered to every chat")
			}
		}
	}
}

func (n *Notifier) enqueue(text string) error {
	select {
	case n.queue <- text:
		return nil
	default:
		return fmt.Errorf("notification queue full, dropping message")
	}
}

func (n *Notifier) onOffered(e events.Event) error {
	var o waitlist.Offered
	if err := e.Decode(&o); err != nil {
		return err
	}
	return n.enqueue(fmt.Sprintf(
		"Warteliste: Tisch am %s um %s für %d Personen angeboten (Eintrag %s), gültig bis %s.",
		o.Date, o.Time, o.PartySize, o.EntryID, o.ExpiresAt.Format("02.01.2006 15:04"),
	))
}

func (n *Notifier) onExpired(e events.Event) error {
	var x waitlist.Expired
	if err := e.Decode(&x); err != nil {
		return err
	}
	return n.enqueue(fmt.Sprintf("Warteliste: %d Angebot(e) abgelaufen.", x.Count))
}

func (n *Notifier) onRejected(e events.Event) error {
	var r booking.Rejection
	if err := e.Decode(&r); err != nil {
		return err
	}
	return n.enqueue(fmt.Sprintf("Reservierung %s %s abgelehnt (%s): %s", r.Date, r.Time, r.Reason, r.Error))
}
