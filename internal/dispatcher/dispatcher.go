// Package dispatcher owns the poll loop that turns due reservations into
// channel messages.
package dispatcher

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/danpung/yeyakbot/internal/kst"
	"github.com/danpung/yeyakbot/internal/repository"
)

// DeliveryPrefix is prepended to every delivered reservation.
const DeliveryPrefix = "📢 예약 메시지\n"

// DefaultInterval is how long the dispatcher sleeps between poll cycles.
// Worst-case delivery latency is this interval plus the send call.
const DefaultInterval = 5 * time.Second

// Sender delivers a message into a channel.
type Sender interface {
	Send(channelID int64, content string) error
}

type Dispatcher struct {
	store    repository.ReservationStore
	sender   Sender
	interval time.Duration
	now      func() time.Time
}

func New(store repository.ReservationStore, sender Sender) *Dispatcher {
	return &Dispatcher{
		store:    store,
		sender:   sender,
		interval: DefaultInterval,
		now:      kst.Now,
	}
}

// WithInterval overrides the poll interval.
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	d.interval = interval
	return d
}

// WithNow overrides the reference clock. Tests use this to make
// reservations due on demand.
func (d *Dispatcher) WithNow(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Run polls the store until ctx is cancelled. A failed cycle is logged and
// the loop carries on; the next cycle re-reads the store, so nothing is
// lost by skipping one.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunCycle(ctx)
		}
	}
}

// RunCycle performs one scan-and-deliver pass: every reservation whose send
// time has passed gets exactly one delivery attempt and is then deleted,
// whether or not the send succeeded. Deleting on failure loses the message,
// but it also guarantees a reservation can never be sent twice.
func (d *Dispatcher) RunCycle(ctx context.Context) {
	pending, err := d.store.ListPending(ctx)
	if err != nil {
		slog.Error("failed to list pending reservations", "error", err)
		return
	}

	now := d.now()
	for _, reservation := range pending {
		if now.Before(reservation.SendAt) {
			continue
		}

		sendErr := d.sender.Send(reservation.ChannelID, DeliveryPrefix+reservation.Content)
		if sendErr != nil {
			slog.Error(
				"failed to deliver reservation",
				"reservationID", reservation.ID,
				"channelID", reservation.ChannelID,
				"error", sendErr,
			)
		}

		if err := d.store.DeleteByID(ctx, reservation.ID); err != nil {
			slog.Error(
				"failed to delete delivered reservation",
				"reservationID", reservation.ID,
				"error", err,
			)
			continue
		}

		if sendErr != nil {
			slog.Warn(
				"removed reservation after failed delivery",
				"reservationID", reservation.ID,
				"channelID", reservation.ChannelID,
				"sendAt", kst.Format(reservation.SendAt),
			)
			continue
		}

		slog.Info(
			"dispatched reservation",
			"reservationID", reservation.ID,
			"channelID", reservation.ChannelID,
			"sendAt", kst.Format(reservation.SendAt),
		)
	}
}

// DiscordSender delivers through a live Discord session.
type DiscordSender struct {
	session *discordgo.Session
}

func NewDiscordSender(session *discordgo.Session) *DiscordSender {
	return &DiscordSender{session: session}
}

func (s *DiscordSender) Send(channelID int64, content string) error {
	_, err := s.session.ChannelMessageSend(strconv.FormatInt(channelID, 10), content)
	return err
}

var _ Sender = (*DiscordSender)(nil)

// PrintingSender logs instead of sending. Used by the bot's dry-run mode.
type PrintingSender struct{}

func (s *PrintingSender) Send(channelID int64, content string) error {
	slog.Info("dry run: message would be sent", "channelID", channelID, "content", content)
	return nil
}

var _ Sender = (*PrintingSender)(nil)
