// Package presenters builds the interaction responses the bot shows users.
// All replies are ephemeral: reservations are personal state.
package presenters

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/danpung/yeyakbot/internal/kst"
	"github.com/danpung/yeyakbot/internal/repository"
)

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

func BadTimeFormatResponse() *discordgo.InteractionResponse {
	return ephemeral("❌ 날짜 형식이 올바르지 않습니다.\n예: 2026-02-20 18:30:00, 3시간 후, 내일 오후 6시 30분 0초")
}

func InvalidTimeValueResponse() *discordgo.InteractionResponse {
	return ephemeral("❌ 존재하지 않는 날짜/시간입니다.")
}

func PastTimeResponse() *discordgo.InteractionResponse {
	return ephemeral("❌ 현재 시간 이후로 설정해주세요.")
}

func ChannelOverrideDeniedResponse() *discordgo.InteractionResponse {
	return ephemeral("❌ 다른 채널로 예약하려면 관리자 권한이 필요합니다.")
}

func InternalErrorResponse() *discordgo.InteractionResponse {
	return ephemeral("❌ 처리 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요.")
}

func ReservationCreatedResponse(id int64, reservation repository.Reservation) *discordgo.InteractionResponse {
	return ephemeral(fmt.Sprintf(
		"✅ 예약이 완료되었습니다.\nID: %d\n시간: %s",
		id,
		kst.Format(reservation.SendAt),
	))
}

func ReservationCancelledResponse() *discordgo.InteractionResponse {
	return ephemeral("🗑 예약이 취소되었습니다.")
}

func ReservationNotFoundResponse() *discordgo.InteractionResponse {
	return ephemeral("❌ 해당 예약을 찾을 수 없습니다.")
}

// BuildReservationListResponse renders one user's pending reservations in
// insertion order, or the empty-state message.
func BuildReservationListResponse(reservations []repository.Reservation) *discordgo.InteractionResponse {
	if len(reservations) == 0 {
		return ephemeral("📭 예약된 메시지가 없습니다.")
	}

	var b strings.Builder
	b.WriteString("📋 예약 목록\n")
	for _, r := range reservations {
		fmt.Fprintf(&b, "\nID: %d\n시간: %s\n내용: %s\n", r.ID, kst.Format(r.SendAt), r.Content)
	}

	return ephemeral(b.String())
}
