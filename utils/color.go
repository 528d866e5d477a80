package utils

import "modbot/model"

const (
	ColorWarn    = 0xFACC15
	ColorMute    = 0xF97316
	ColorKick    = 0xEF4444
	ColorBan     = 0xB91C1C
	ColorLift    = 0x22C55E
	ColorEdit    = 0x3B82F6
	ColorRemoved = 0x6B7280
)

// PunishmentColor returns the embed color used for t.
func PunishmentColor(t model.PunishmentType) int {
	switch t {
	case model.PunishmentWarn:
		return ColorWarn
	case model.PunishmentMute:
		return ColorMute
	case model.PunishmentKick:
		return ColorKick
	case model.PunishmentBan:
		return ColorBan
	case model.PunishmentUnmute, model.PunishmentUnban:
		return ColorLift
	}
	return ColorEdit
}

// EditColor returns the embed color for an edit log entry.
func EditColor(kind model.EditKind) int {
	if kind == model.EditDelete || kind == model.EditBulkDelete {
		return ColorRemoved
	}
	return ColorEdit
}
