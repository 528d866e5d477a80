package handlers

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"modbot/bot"
	"modbot/utils"
	"modbot/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// StatusHandler shows host, process and moderation store statistics.
func StatusHandler(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cpuCount, _ := cpu.CountsWithContext(ctx, true)
	cpuPercent, _ := cpu.PercentWithContext(ctx, 0, false)
	vm, _ := mem.VirtualMemoryWithContext(ctx)
	hostInfo, _ := host.InfoWithContext(ctx)

	var dbSize int64
	if fi, err := os.Stat(b.Config.DatabasePath); err == nil {
		dbSize = fi.Size() / 1024 / 1024
	}

	punishments, err := b.Store.Punishments.Count(ctx, database.PunishmentFilter{})
	if err != nil {
		b.Logger.Warn("Failed to count punishments", zap.Error(err))
	}
	tasks, err := b.Store.Tasks.Count(ctx)
	if err != nil {
		b.Logger.Warn("Failed to count tasks", zap.Error(err))
	}

	embed := &discordgo.MessageEmbed{
		Title: "Status",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "💻 OS", Value: osVersion(hostInfo), Inline: true},
			{Name: "🐹 Go", Value: runtime.Version(), Inline: true},
			{Name: "⏳ Uptime", Value: utils.FormatDuration(time.Since(b.StartedAt()).Milliseconds()), Inline: true},
			{Name: "🔼 CPUs", Value: fmt.Sprintf("%d", cpuCount), Inline: true},
			{Name: "🔥 CPU usage", Value: cpuUsage(cpuPercent), Inline: true},
			{Name: "🧠 Memory", Value: memUsage(vm), Inline: true},
			{Name: "🗃️ Database", Value: fmt.Sprintf("%d MB", dbSize), Inline: true},
			{Name: "⏱️ Latency", Value: s.HeartbeatLatency().String(), Inline: true},
			{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
			{Name: "🌍 Servers", Value: fmt.Sprintf("%d", len(s.State.Guilds)), Inline: true},
			{Name: "🔨 Punishments", Value: fmt.Sprintf("%d", punishments), Inline: true},
			{Name: "⏰ Pending expiries", Value: fmt.Sprintf("%d", tasks), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Status · " + time.Now().Format("15:04"),
		},
	}

	utils.SendEmbedResponse(s, i, embed, nil, true)
}

func osVersion(info *host.InfoStat) string {
	if info == nil {
		return "unknown"
	}
	return fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
}

func cpuUsage(percent []float64) string {
	if len(percent) == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.1f%%", percent[0])
}

func memUsage(vm *mem.VirtualMemoryStat) string {
	if vm == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024)
}
