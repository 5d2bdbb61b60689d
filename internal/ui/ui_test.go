package ui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenModal_DoesNotCloseOthers(t *testing.T) {
	o := New(nil)
	o.OpenModal(ModalLogin, nil)
	o.OpenModal(ModalSignup, nil)

	// Mutual exclusion is a caller convention; both render.
	assert.True(t, o.IsOpen(ModalLogin))
	assert.True(t, o.IsOpen(ModalSignup))
}

func TestOpenAuthModal_ClosesOtherAuthModals(t *testing.T) {
	o := New(nil)
	o.OpenModal(ModalLogin, nil)
	o.OpenModal(ModalGoalSetting, nil)

	o.OpenAuthModal(ModalSignup)

	assert.False(t, o.IsOpen(ModalLogin))
	assert.True(t, o.IsOpen(ModalSignup))
	assert.True(t, o.IsOpen(ModalGoalSetting), "non-auth modals are untouched")
}

func TestOpenModal_KeepsParams(t *testing.T) {
	o := New(nil)
	o.OpenModal(ModalEditApp, map[string]any{"id": "app-1"})

	snap := o.Snapshot()
	assert.Equal(t, "app-1", snap.Modals[ModalEditApp].Params["id"])

	o.CloseModal(ModalEditApp)
	assert.False(t, o.IsOpen(ModalEditApp))
}

func TestToastQueue(t *testing.T) {
	o := New(nil)
	first := o.ShowToast(Toast{Type: ToastSuccess, Message: "Saved"})
	o.ShowToast(Toast{Message: "FYI"})

	toasts := o.Toasts()
	require.Len(t, toasts, 2)
	assert.Equal(t, ToastSuccess, toasts[0].Type)
	assert.Equal(t, ToastInfo, toasts[1].Type)
	assert.Equal(t, DefaultToastDuration, toasts[1].Duration)

	o.DismissToast(first)
	toasts = o.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, "FYI", toasts[0].Message)
}

func TestSetAdmin_OpensAdminView(t *testing.T) {
	o := New(nil)
	o.SetAdmin(AdminState{Authenticated: true, DashboardOpen: true, CurrentSection: "overview"})
	assert.Equal(t, ViewAdmin, o.View())
	assert.True(t, o.Admin().Authenticated)

	o.ResetAdmin()
	assert.Equal(t, ViewHome, o.View())
	assert.False(t, o.Admin().Authenticated)
}

func TestPersistedFlags(t *testing.T) {
	ctx := context.Background()
	o := New(nil)

	first, err := o.FirstVisit(ctx)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = o.FirstVisit(ctx)
	require.NoError(t, err)
	assert.False(t, first)

	show, err := o.ShouldShowWelcomeTour(ctx)
	require.NoError(t, err)
	assert.True(t, show)

	require.NoError(t, o.MarkWelcomeTourSeen(ctx))
	show, err = o.ShouldShowWelcomeTour(ctx)
	require.NoError(t, err)
	assert.False(t, show)
}
