package moderation

import (
	"strings"

	"modbot/model"
	"modbot/utils"

	"emperror.dev/errors"
)

// Permanent is accepted wherever a duration is, and means no expiry.
const Permanent = "permanent"

func defaultDuration(t model.PunishmentType, d model.PunishmentDefaults) string {
	switch t {
	case model.PunishmentWarn:
		return d.WarnDuration
	case model.PunishmentMute:
		return d.MuteDuration
	case model.PunishmentBan:
		return d.BanDuration
	}
	return ""
}

// ResolveDuration turns a moderator's duration input into milliseconds. Empty
// input falls back to the guild default for t; "permanent" suppresses it.
// A nil result means no expiry.
func ResolveDuration(t model.PunishmentType, input string, defaults model.PunishmentDefaults) (*int64, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, Permanent) {
		return nil, nil
	}
	if input != "" {
		return parseDuration(input)
	}

	def := strings.TrimSpace(defaultDuration(t, defaults))
	if def == "" || def == "0" {
		return nil, nil
	}
	d, err := parseDuration(def)
	if err != nil {
		return nil, errors.Errorf("This server's default %s duration %q is invalid.", strings.ToLower(string(t)), def)
	}
	return d, nil
}

func parseDuration(input string) (*int64, error) {
	ms, ok := utils.ParseDuration(input)
	if !ok {
		return nil, errors.Errorf("%q is not a valid duration. Try something like 10m, 2 days or 1h30m.", input)
	}
	return &ms, nil
}

// parseWindow reads an optional escalation window. Empty input means no window.
func parseWindow(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	d, err := parseDuration(input)
	if err != nil {
		return 0, err
	}
	if *d < model.MinDuration {
		return 0, errors.New("The window must be at least 1 second.")
	}
	return *d, nil
}
