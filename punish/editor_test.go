package punish

import (
	"context"
	"testing"
	"time"

	"modbot/model"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeReasonRejectsSameReason(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	warn := env.issue(t, IssueRequest{Type: model.PunishmentWarn, Reason: "spamming"})

	asked := false
	confirm := ConfirmFunc(func(context.Context, string) (bool, error) {
		asked = true
		return true, nil
	})

	_, err := env.manager.ChangeReason(context.Background(), ChangeReasonRequest{
		GuildID:      testGuild,
		PunishmentID: warn.Punishment.ID,
		ModeratorID:  testMod,
		Reason:       " spamming ",
		Confirmer:    confirm,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, asked)
	assert.Empty(t, env.audit.edits)

	stored, err := env.store.Punishments.FindByID(context.Background(), warn.Punishment.ID)
	require.NoError(t, err)
	assert.Equal(t, warn.Punishment, *stored)
}

func TestChangeReason(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	warn := env.issue(t, IssueRequest{Type: model.PunishmentWarn, Reason: "spamming"})

	res, err := env.manager.ChangeReason(context.Background(), ChangeReasonRequest{
		GuildID:      testGuild,
		PunishmentID: warn.Punishment.ID,
		ModeratorID:  testMod,
		Reason:       "posting invites",
		Confirmer:    approve,
	})
	require.NoError(t, err)
	assert.Equal(t, "spamming", res.Edit.OldReason)
	assert.Equal(t, "posting invites", res.Edit.NewReason)

	stored, err := env.store.Punishments.FindByID(context.Background(), warn.Punishment.ID)
	require.NoError(t, err)
	assert.Equal(t, "posting invites", stored.Reason)
	require.Len(t, env.audit.edits, 1)
	assert.Equal(t, model.EditReason, env.audit.edits[0].Kind)
	assert.Len(t, env.notifier.edits, 1)
}

func TestEditFailsClosed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		confirm Confirmer
		message string
	}{
		{"declined", ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil }), "Operation cancelled."},
		{"no confirmer", nil, "Operation cancelled."},
		{"timed out", ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		}), "Confirmation timed out. Operation automatically cancelled."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.manager.confirmTimeout = 20 * time.Millisecond
			mute := env.issue(t, IssueRequest{Type: model.PunishmentMute, Duration: ms(time.Hour)})

			_, err := env.manager.DeletePunishment(context.Background(), DeleteRequest{
				GuildID:      testGuild,
				PunishmentID: mute.Punishment.ID,
				ModeratorID:  testMod,
				Reason:       "mistake",
				Undo:         true,
				Confirmer:    tt.confirm,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCancelled))
			msg, ok := UserMessage(err)
			assert.True(t, ok)
			assert.Equal(t, tt.message, msg)

			assert.Len(t, env.userRecords(t), 1)
			assert.Equal(t, 1, env.taskCount(t))
			assert.Empty(t, env.audit.edits)
		})
	}
}

func TestChangeDurationValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	kick := env.issue(t, IssueRequest{Type: model.PunishmentKick})
	warn := env.issue(t, IssueRequest{Type: model.PunishmentWarn, Duration: ms(time.Minute)})
	mute := env.issue(t, IssueRequest{Type: model.PunishmentMute, Duration: ms(time.Hour)})
	ban := env.issue(t, IssueRequest{Type: model.PunishmentBan, Duration: ms(time.Hour)})
	env.clock.Advance(2 * time.Minute)

	tests := []struct {
		name     string
		id       string
		duration *int64
		absent   bool
	}{
		{"kick is not temporal", kick.Punishment.ID, ms(time.Hour), false},
		{"expired warning", warn.Punishment.ID, ms(time.Hour), false},
		{"mute over 28 days", mute.Punishment.ID, ms(29 * 24 * time.Hour), false},
		{"permanent mute", mute.Punishment.ID, nil, false},
		{"member left", mute.Punishment.ID, ms(2 * time.Hour), true},
		{"ban expiry overflows", ban.Punishment.ID, farFuture(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.members.absent = tt.absent
			_, err := env.manager.ChangeDuration(context.Background(), ChangeDurationRequest{
				GuildID:      testGuild,
				PunishmentID: tt.id,
				ModeratorID:  testMod,
				Duration:     tt.duration,
				Confirmer:    approve,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
	assert.Empty(t, env.audit.edits)
}

func TestChangeDurationOfMute(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	mute := env.issue(t, IssueRequest{Type: model.PunishmentMute, Duration: ms(time.Hour)})
	env.clock.Advance(10 * time.Minute)

	res, err := env.manager.ChangeDuration(context.Background(), ChangeDurationRequest{
		GuildID:      testGuild,
		PunishmentID: mute.Punishment.ID,
		ModeratorID:  testMod,
		Duration:     ms(3 * time.Hour),
		Confirmer:    approve,
	})
	require.NoError(t, err)
	assert.True(t, res.Enforcement.OK())
	assert.True(t, res.Task.OK())

	want := env.clock.Now().UnixMilli() + 3*hour
	require.NotNil(t, res.Edit.NewExpiration)
	assert.Equal(t, want, *res.Edit.NewExpiration)
	assert.Equal(t, *mute.Punishment.Expires, *res.Edit.OldExpiration)

	task, err := env.store.Tasks.Get(context.Background(), model.TaskKey{
		UserID: testUser, GuildID: testGuild, Type: model.PunishmentMute,
	})
	require.NoError(t, err)
	assert.Equal(t, want, task.Expires)

	stored, err := env.store.Punishments.FindByID(context.Background(), mute.Punishment.ID)
	require.NoError(t, err)
	assert.Equal(t, want, *stored.Expires)
	require.Len(t, env.audit.edits, 1)
	assert.Equal(t, model.EditExpiration, env.audit.edits[0].Kind)
}

func TestChangeDurationMakesBanPermanent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ban := env.issue(t, IssueRequest{Type: model.PunishmentBan, Duration: ms(time.Hour)})

	_, err := env.manager.ChangeDuration(context.Background(), ChangeDurationRequest{
		GuildID:      testGuild,
		PunishmentID: ban.Punishment.ID,
		ModeratorID:  testMod,
		Confirmer:    approve,
		Silent:       true,
	})
	require.NoError(t, err)

	stored, err := env.store.Punishments.FindByID(context.Background(), ban.Punishment.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Expires)
	assert.Zero(t, env.taskCount(t))
	assert.Empty(t, env.notifier.edits)

	_, err = env.manager.ChangeDuration(context.Background(), ChangeDurationRequest{
		GuildID:      testGuild,
		PunishmentID: ban.Punishment.ID,
		ModeratorID:  testMod,
		Confirmer:    approve,
	})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDeletePunishmentWithUndo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	mute := env.issue(t, IssueRequest{Type: model.PunishmentMute, Duration: ms(time.Hour)})

	res, err := env.manager.DeletePunishment(context.Background(), DeleteRequest{
		GuildID:      testGuild,
		PunishmentID: mute.Punishment.ID,
		ModeratorID:  testMod,
		Reason:       "appealed",
		Undo:         true,
		Confirmer:    approve,
	})
	require.NoError(t, err)
	require.NoError(t, res.UndoErr)
	assert.True(t, res.Edit.Undone)

	records := env.userRecords(t)
	require.Len(t, records, 1)
	assert.Equal(t, model.PunishmentUnmute, records[0].Type)
	assert.Equal(t, "appealed", records[0].Reason)
	assert.Zero(t, env.taskCount(t))
	assert.Contains(t, env.events.all(), "untimeout "+testUser)

	require.Len(t, env.audit.edits, 1)
	assert.Equal(t, model.EditDelete, env.audit.edits[0].Kind)
	require.Len(t, env.notifier.edits, 1)
	assert.True(t, env.notifier.edits[0].Undone)
}

func TestDeletePunishmentWithoutUndo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	mute := env.issue(t, IssueRequest{Type: model.PunishmentMute, Duration: ms(time.Hour)})

	res, err := env.manager.DeletePunishment(context.Background(), DeleteRequest{
		GuildID:      testGuild,
		PunishmentID: mute.Punishment.ID,
		ModeratorID:  testMod,
		Reason:       "wrong user",
		Confirmer:    approve,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Undo)
	assert.False(t, res.Edit.Undone)
	assert.Empty(t, env.userRecords(t))
	assert.Zero(t, env.taskCount(t))
	assert.NotContains(t, env.events.all(), "untimeout "+testUser)
}

func TestDeletePunishmentChecks(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	warn := env.issue(t, IssueRequest{Type: model.PunishmentWarn, ModeratorID: "mod-2"})

	base := DeleteRequest{
		GuildID:      testGuild,
		PunishmentID: warn.Punishment.ID,
		ModeratorID:  testMod,
		Reason:       "cleanup",
		Confirmer:    approve,
	}

	_, err := env.manager.DeletePunishment(context.Background(), base)
	assert.True(t, errors.Is(err, ErrPermission))

	undo := base
	undo.IsManager, undo.Undo = true, true
	_, err = env.manager.DeletePunishment(context.Background(), undo)
	assert.True(t, errors.Is(err, ErrValidation))

	otherGuild := base
	otherGuild.GuildID, otherGuild.IsManager = "guild-2", true
	_, err = env.manager.DeletePunishment(context.Background(), otherGuild)
	assert.True(t, errors.Is(err, ErrNotFound))

	noReason := base
	noReason.IsManager, noReason.Reason = true, ""
	_, err = env.manager.DeletePunishment(context.Background(), noReason)
	assert.True(t, errors.Is(err, ErrValidation))

	assert.Len(t, env.userRecords(t), 1)

	manager := base
	manager.IsManager = true
	_, err = env.manager.DeletePunishment(context.Background(), manager)
	require.NoError(t, err)
	assert.Empty(t, env.userRecords(t))
}

func TestDeleteAllAutomodPunishments(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.issue(t, IssueRequest{Type: model.PunishmentWarn, ModeratorID: testBot, Automod: true})
	}
	env.issue(t, IssueRequest{Type: model.PunishmentMute, ModeratorID: testBot, Automod: true, Duration: ms(time.Hour)})
	env.issue(t, IssueRequest{Type: model.PunishmentWarn})
	env.issue(t, IssueRequest{Type: model.PunishmentKick})

	res, err := env.manager.DeleteAllPunishments(context.Background(), DeleteAllRequest{
		GuildID:     testGuild,
		UserID:      testUser,
		ModeratorID: testMod,
		Reason:      "false positives",
		Automod:     true,
		Confirmer:   approve,
	})
	require.NoError(t, err)
	assert.Len(t, res.Deleted, 4)
	assert.True(t, res.Task.OK())
	assert.Zero(t, env.taskCount(t))

	remaining := env.userRecords(t)
	require.Len(t, remaining, 2)
	for _, p := range remaining {
		assert.False(t, p.Automod)
	}

	require.Len(t, env.audit.edits, 1)
	edit := env.audit.edits[0]
	assert.Equal(t, model.EditBulkDelete, edit.Kind)
	ids := make([]string, len(res.Deleted))
	for i, p := range res.Deleted {
		ids[i] = p.ID
	}
	assert.ElementsMatch(t, ids, edit.DeletedIDs)

	_, err = env.manager.DeleteAllPunishments(context.Background(), DeleteAllRequest{
		GuildID:     testGuild,
		UserID:      testUser,
		ModeratorID: testMod,
		Reason:      "again",
		Automod:     true,
		Confirmer:   approve,
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}
