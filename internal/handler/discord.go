package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/danpung/yeyakbot/internal/generator"
	"github.com/danpung/yeyakbot/internal/kst"
	"github.com/danpung/yeyakbot/internal/parse"
	"github.com/danpung/yeyakbot/internal/presenters"
	"github.com/danpung/yeyakbot/internal/repository"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID)
}

// ScheduleRequest is the 예약 command's payload after option extraction.
type ScheduleRequest struct {
	Expression        string
	Content           string
	OverrideChannelID string
}

func CommandToScheduleRequest(options []*discordgo.ApplicationCommandInteractionDataOption) (*ScheduleRequest, error) {
	var req ScheduleRequest

	for _, option := range options {
		switch option.Name {
		case "시간":
			if option.Type != discordgo.ApplicationCommandOptionString {
				return nil, fmt.Errorf("invalid type for 시간 option")
			}
			req.Expression = option.StringValue()
		case "내용":
			if option.Type != discordgo.ApplicationCommandOptionString {
				return nil, fmt.Errorf("invalid type for 내용 option")
			}
			req.Content = option.StringValue()
		case "채널":
			if option.Type != discordgo.ApplicationCommandOptionChannel {
				return nil, fmt.Errorf("invalid type for 채널 option")
			}
			req.OverrideChannelID = option.ChannelValue(nil).ID
		}
	}

	if req.Expression == "" {
		return nil, fmt.Errorf("시간 option is required")
	}
	if req.Content == "" {
		return nil, fmt.Errorf("내용 option is required")
	}

	return &req, nil
}

// HasAdministrator reports whether the invoking member carries the
// administrator permission bit. Cross-channel scheduling is gated on it.
func HasAdministrator(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	return member.Permissions&discordgo.PermissionAdministrator != 0
}

func interactionUserID(i *discordgo.InteractionCreate) (int64, error) {
	var id string
	switch {
	case i.Member != nil && i.Member.User != nil:
		id = i.Member.User.ID
	case i.User != nil:
		id = i.User.ID
	default:
		return 0, fmt.Errorf("interaction carries no user")
	}
	return strconv.ParseInt(id, 10, 64)
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse, requestID string) {
	if err := s.InteractionRespond(i.Interaction, resp); err != nil {
		slog.Error("failed to respond to interaction", "requestID", requestID, "error", err)
	}
}

var requestIDGenerator = generator.UUIDV4Generator{}

// MakeInteractionCreateHandler routes the three reservation commands to the
// store. Every validation failure is answered at this boundary; nothing
// invalid reaches the store or the dispatcher.
func MakeInteractionCreateHandler(store repository.ReservationStore) InteractionCreateHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}

		requestID, err := requestIDGenerator.Next()
		if err != nil {
			slog.Error("failed to generate request ID", "error", err)
			return
		}

		command := i.ApplicationCommandData()
		switch command.Name {
		case "예약":
			handleSchedule(s, i, store, requestID)
		case "예약목록":
			handleList(s, i, store, requestID)
		case "예약취소":
			handleCancel(s, i, store, requestID)
		}
	}
}

// ResolveSchedule validates a 예약 interaction against the reference instant
// now and either yields the reservation to store or the response rejecting
// it. It touches no store and no session: every reservation it returns is
// strictly in the future, so rejected input can never reach persistence.
func ResolveSchedule(i *discordgo.InteractionCreate, now time.Time) (repository.Reservation, *discordgo.InteractionResponse, error) {
	req, err := CommandToScheduleRequest(i.ApplicationCommandData().Options)
	if err != nil {
		return repository.Reservation{}, nil, fmt.Errorf("failed to extract schedule request: %w", err)
	}

	sendAt, err := parse.Parse(req.Expression, now)
	if err != nil {
		var valueErr *parse.ValueError
		switch {
		case errors.Is(err, parse.ErrNoMatch):
			return repository.Reservation{}, presenters.BadTimeFormatResponse(), nil
		case errors.As(err, &valueErr):
			return repository.Reservation{}, presenters.InvalidTimeValueResponse(), nil
		default:
			return repository.Reservation{}, nil, fmt.Errorf("failed to parse time expression: %w", err)
		}
	}

	if !sendAt.After(now) {
		return repository.Reservation{}, presenters.PastTimeResponse(), nil
	}

	targetChannelID := i.ChannelID
	if req.OverrideChannelID != "" && req.OverrideChannelID != i.ChannelID {
		if !HasAdministrator(i.Member) {
			return repository.Reservation{}, presenters.ChannelOverrideDeniedResponse(), nil
		}
		targetChannelID = req.OverrideChannelID
	}

	reservation, err := buildReservation(i, targetChannelID, sendAt, req.Content)
	if err != nil {
		return repository.Reservation{}, nil, err
	}

	return reservation, nil, nil
}

func handleSchedule(s *discordgo.Session, i *discordgo.InteractionCreate, store repository.ReservationStore, requestID string) {
	reservation, rejection, err := ResolveSchedule(i, kst.Now())
	if err != nil {
		slog.Error("failed to resolve schedule request", "requestID", requestID, "error", err)
		respond(s, i, presenters.InternalErrorResponse(), requestID)
		return
	}
	if rejection != nil {
		respond(s, i, rejection, requestID)
		return
	}

	id, err := store.Create(context.Background(), reservation)
	if err != nil {
		slog.Error("failed to create reservation", "requestID", requestID, "error", err)
		respond(s, i, presenters.InternalErrorResponse(), requestID)
		return
	}

	slog.Info(
		"reservation created",
		"requestID", requestID,
		"reservationID", id,
		"sendAt", kst.Format(reservation.SendAt),
		"channelID", reservation.ChannelID,
	)
	respond(s, i, presenters.ReservationCreatedResponse(id, reservation), requestID)
}

func buildReservation(i *discordgo.InteractionCreate, channelID string, sendAt time.Time, content string) (repository.Reservation, error) {
	guild, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		return repository.Reservation{}, fmt.Errorf("failed to parse guild ID %q: %w", i.GuildID, err)
	}

	channel, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return repository.Reservation{}, fmt.Errorf("failed to parse channel ID %q: %w", channelID, err)
	}

	user, err := interactionUserID(i)
	if err != nil {
		return repository.Reservation{}, fmt.Errorf("failed to parse user ID: %w", err)
	}

	return repository.Reservation{
		GuildID:   guild,
		ChannelID: channel,
		UserID:    user,
		SendAt:    sendAt,
		Content:   content,
	}, nil
}

func handleList(s *discordgo.Session, i *discordgo.InteractionCreate, store repository.ReservationStore, requestID string) {
	userID, err := interactionUserID(i)
	if err != nil {
		slog.Error("failed to resolve interaction user", "requestID", requestID, "error", err)
		respond(s, i, presenters.InternalErrorResponse(), requestID)
		return
	}

	reservations, err := store.ListByOwner(context.Background(), userID)
	if err != nil {
		slog.Error("failed to list reservations", "requestID", requestID, "userID", userID, "error", err)
		respond(s, i, presenters.InternalErrorResponse(), requestID)
		return
	}

	respond(s, i, presenters.BuildReservationListResponse(reservations), requestID)
}

func handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, store repository.ReservationStore, requestID string) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 || options[0].Name != "id" {
		slog.Warn("cancel command missing id option", "requestID", requestID)
		respond(s, i, presenters.InternalErrorResponse(), requestID)
		return
	}
	id := options[0].IntValue()

	userID, err := interactionUserID(i)
	if err != nil {
		slog.Error("failed to resolve interaction user", "requestID", requestID, "error", err)
		respond(s, i, presenters.InternalErrorResponse(), requestID)
		return
	}

	cancelled, err := store.CancelByOwner(context.Background(), id, userID)
	if err != nil {
		slog.Error("failed to cancel reservation", "requestID", requestID, "reservationID", id, "error", err)
		respond(s, i, presenters.InternalErrorResponse(), requestID)
		return
	}

	if !cancelled {
		respond(s, i, presenters.ReservationNotFoundResponse(), requestID)
		return
	}

	slog.Info("reservation cancelled", "requestID", requestID, "reservationID", id, "userID", userID)
	respond(s, i, presenters.ReservationCancelledResponse(), requestID)
}

type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
}

func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.AddHandler(handlers.Ready)
	s.AddHandler(handlers.InteractionCreate)

	return s, nil
}
