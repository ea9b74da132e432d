package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var scheduleOptions = []*discordgo.ApplicationCommandOption{
	{
		Name:        "시간",
		Type:        discordgo.ApplicationCommandOptionString,
		Description: "예: 3시간 후, 내일 오후 6시 30분 0초, 2026-02-20 18:30:00",
		Required:    true,
	},
	{
		Name:        "내용",
		Type:        discordgo.ApplicationCommandOptionString,
		Description: "보낼 메시지",
		Required:    true,
	},
	{
		Name:        "채널",
		Type:        discordgo.ApplicationCommandOptionChannel,
		Description: "다른 채널로 보내기 (관리자 전용)",
		Required:    false,
	},
}

// Commands is the full slash-command surface, registered per guild at
// startup.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "예약",
		Description: "특정 날짜/시간에 메시지를 예약합니다.",
		Options:     scheduleOptions,
	},
	{
		Name:        "예약목록",
		Description: "내 예약 목록을 확인합니다.",
	},
	{
		Name:        "예약취소",
		Description: "예약을 취소합니다.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "id",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "취소할 예약 ID",
				Required:    true,
			},
		},
	},
}

func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}
