package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applytrak/applytrak/internal/types"
)

var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func validInput() types.ApplicationInput {
	return types.ApplicationInput{
		Company:     "Acme",
		Position:    "Backend Engineer",
		DateApplied: "2026-10-14",
		Type:        types.EmploymentRemote,
	}
}

func ptr[T any](v T) *T { return &v }

func TestApply_AddApplication(t *testing.T) {
	t.Run("without cloud sync no effect", func(t *testing.T) {
		s, effects := Apply(InitialState(), AddApplication{ID: "a1", Input: validInput(), At: t0})

		require.Len(t, s.Applications, 1)
		app := s.Applications[0]
		assert.Equal(t, "a1", app.ID)
		assert.Equal(t, types.StatusApplied, app.Status)
		assert.Equal(t, types.SyncPending, app.SyncStatus)
		assert.Equal(t, t0, app.CreatedAt)
		assert.Empty(t, effects)
	})

	t.Run("with cloud sync inserts remotely", func(t *testing.T) {
		st := InitialState()
		st.CloudSync = true
		_, effects := Apply(st, AddApplication{ID: "a1", Input: validInput(), At: t0})

		require.Len(t, effects, 1)
		insert, ok := effects[0].(InsertRemote)
		require.True(t, ok)
		assert.Equal(t, "a1", insert.Application.ID)
	})

	t.Run("invalid input rejected", func(t *testing.T) {
		in := validInput()
		in.Company = ""
		in.JobURL = "not a url"
		s, effects := Apply(InitialState(), AddApplication{ID: "a1", Input: in, At: t0})

		assert.Empty(t, s.Applications)
		assert.Empty(t, effects)
		assert.Contains(t, s.FieldErrors, "company")
		assert.Contains(t, s.FieldErrors, "jobUrl")
	})
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s1, _ := Apply(InitialState(), AddApplication{ID: "a1", Input: validInput(), At: t0})
	s2, _ := Apply(s1, UpdateStatus{ID: "a1", Status: types.StatusInterview, At: t0.Add(time.Hour)})
	s3, _ := Apply(s1, AddApplication{ID: "a2", Input: validInput(), At: t0})

	assert.Equal(t, types.StatusApplied, s1.Applications[0].Status)
	assert.Equal(t, types.StatusInterview, s2.Applications[0].Status)
	assert.Len(t, s1.Applications, 1)
	assert.Len(t, s3.Applications, 2)
}

func TestApply_UpdateApplication(t *testing.T) {
	st := InitialState()
	st.CloudSync = true
	st.Applications = []types.Application{{
		ID: "a1", Company: "Acme", Position: "Dev", DateApplied: "2026-10-01", Type: types.EmploymentOnsite,
		Status: types.StatusApplied, SyncStatus: types.SyncSynced, RemoteID: "77",
	}}

	s, effects := Apply(st, UpdateApplication{ID: "a1", Patch: types.ApplicationPatch{Notes: ptr("phone screen booked")}, At: t0})
	require.Len(t, effects, 1)
	update, ok := effects[0].(UpdateRemote)
	require.True(t, ok)
	assert.Equal(t, "77", update.Application.RemoteID)
	assert.Equal(t, "phone screen booked", s.Applications[0].Notes)
	assert.Equal(t, types.SyncPending, s.Applications[0].SyncStatus)

	s, effects = Apply(st, UpdateApplication{ID: "a1", Patch: types.ApplicationPatch{Company: ptr("")}, At: t0})
	assert.Empty(t, effects)
	assert.Equal(t, "Acme", s.Applications[0].Company)
	assert.Equal(t, "This field is required", s.FieldErrors["company"])

	s, _ = Apply(st, UpdateApplication{ID: "missing", At: t0})
	assert.Contains(t, s.Error, "not found")
}

func TestApply_UpdateStatus_Invalid(t *testing.T) {
	s1, _ := Apply(InitialState(), AddApplication{ID: "a1", Input: validInput(), At: t0})
	s2, _ := Apply(s1, UpdateStatus{ID: "a1", Status: "Ghosted", At: t0})
	assert.Equal(t, types.StatusApplied, s2.Applications[0].Status)
	assert.Contains(t, s2.FieldErrors, "status")
}

func TestApply_UpdateGoals(t *testing.T) {
	tests := []struct {
		name  string
		patch types.GoalsPatch
		ok    bool
	}{
		{"weekly in range", types.GoalsPatch{WeeklyGoal: ptr(50)}, true},
		{"weekly zero", types.GoalsPatch{WeeklyGoal: ptr(0)}, false},
		{"weekly too high", types.GoalsPatch{WeeklyGoal: ptr(51)}, false},
		{"monthly too high", types.GoalsPatch{MonthlyGoal: ptr(201)}, false},
		{"monthly zero", types.GoalsPatch{MonthlyGoal: ptr(0)}, false},
		{"total too high", types.GoalsPatch{TotalGoal: ptr(1001)}, false},
		{"total max", types.GoalsPatch{TotalGoal: ptr(1000)}, true},
		{"mixed valid and invalid", types.GoalsPatch{WeeklyGoal: ptr(10), TotalGoal: ptr(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := InitialState()
			st.CloudSync = true
			s, effects := Apply(st, UpdateGoals{Patch: tt.patch})
			if tt.ok {
				assert.NotEqual(t, st.Goals, s.Goals)
				require.Len(t, effects, 1)
				assert.IsType(t, SaveGoalsRemote{}, effects[0])
				return
			}
			assert.Equal(t, st.Goals, s.Goals)
			assert.Empty(t, effects)
			assert.NotEmpty(t, s.FieldErrors)
			assert.Error(t, Check(st, UpdateGoals{Patch: tt.patch}))
		})
	}
}

func TestApply_DeleteApplications(t *testing.T) {
	st := InitialState()
	st.CloudSync = true
	st.Applications = []types.Application{{ID: "a1", RemoteID: "1"}, {ID: "a2"}, {ID: "a3", RemoteID: "3"}}

	s, effects := Apply(st, DeleteApplications{IDs: []string{"a1", "a2", "zz"}})
	require.Len(t, s.Applications, 1)
	assert.Equal(t, "a3", s.Applications[0].ID)
	assert.Equal(t, []Effect{DeleteRemote{ID: "a1", RemoteID: "1"}}, effects)
}

func TestApply_MarkSynced(t *testing.T) {
	s, _ := Apply(InitialState(), AddApplication{ID: "a1", Input: validInput(), At: t0})

	t.Run("matching version", func(t *testing.T) {
		next, _ := Apply(s, MarkSynced{ID: "a1", RemoteID: "9", Version: t0})
		assert.Equal(t, types.SyncSynced, next.Applications[0].SyncStatus)
		assert.Equal(t, "9", next.Applications[0].RemoteID)
		assert.Equal(t, 0, next.PendingCount())
	})

	t.Run("edited since", func(t *testing.T) {
		edited, _ := Apply(s, UpdateStatus{ID: "a1", Status: types.StatusOffer, At: t0.Add(time.Minute)})
		next, _ := Apply(edited, MarkSynced{ID: "a1", RemoteID: "9", Version: t0})
		assert.Equal(t, types.SyncPending, next.Applications[0].SyncStatus)
		assert.Equal(t, "9", next.Applications[0].RemoteID)
	})

	t.Run("failure keeps pending", func(t *testing.T) {
		next, _ := Apply(s, MarkSyncFailed{ID: "a1", Err: "boom"})
		assert.Equal(t, types.SyncPending, next.Applications[0].SyncStatus)
		assert.Equal(t, "boom", next.SyncError)
		assert.Equal(t, 1, next.PendingCount())
	})
}

func TestApply_MarkSyncedAfterDelete(t *testing.T) {
	st := InitialState()
	st.CloudSync = true

	t.Run("insert outcome removes the remote row", func(t *testing.T) {
		next, effects := Apply(st, MarkSynced{ID: "gone", RemoteID: "7", Version: t0, Inserted: true})
		assert.Empty(t, next.Applications)
		assert.Equal(t, []Effect{DeleteRemote{ID: "gone", RemoteID: "7"}}, effects)
	})

	t.Run("update outcome is dropped", func(t *testing.T) {
		_, effects := Apply(st, MarkSynced{ID: "gone", RemoteID: "7", Version: t0})
		assert.Empty(t, effects)
	})
}

func TestApply_AttachFiles(t *testing.T) {
	st := InitialState()
	st.CloudSync = true
	st.Applications = []types.Application{{ID: "a1", RemoteID: "1", Company: "Acme", Position: "Dev",
		DateApplied: "2026-10-14", Type: types.EmploymentRemote, Status: types.StatusApplied,
		Attachments: []types.Attachment{{ID: "old", Name: "cv.pdf", Type: "application/pdf"}}}}

	next, effects := Apply(st, AttachFiles{
		ID: "a1",
		Files: []File{
			{Name: "letter.pdf", Type: "application/pdf", Content: []byte("pdf")},
			{Name: "cv.pdf", Type: "application/pdf", Content: []byte("again")},
		},
		IDs: []string{"n1", "n2"},
		At:  t0,
	})

	app := next.Applications[0]
	require.Len(t, app.Attachments, 2)
	assert.Equal(t, "n1", app.Attachments[1].ID)
	assert.Equal(t, types.SyncPending, app.SyncStatus)
	require.Len(t, effects, 2)
	toast, ok := effects[0].(ShowToast)
	require.True(t, ok)
	assert.Contains(t, toast.Toast.Message, "already attached")
	assert.IsType(t, UpdateRemote{}, effects[1])
	assert.Len(t, st.Applications[0].Attachments, 1, "input state untouched")

	t.Run("nothing accepted leaves the record", func(t *testing.T) {
		same, effects := Apply(st, AttachFiles{ID: "a1", Files: []File{{Name: "x.exe", Type: "application/x-msdownload"}}, IDs: []string{"n1"}, At: t0})
		assert.Equal(t, st.Applications, same.Applications)
		require.Len(t, effects, 1)
		assert.IsType(t, ShowToast{}, effects[0])
	})

	t.Run("unknown application", func(t *testing.T) {
		same, effects := Apply(st, AttachFiles{ID: "zz", At: t0})
		assert.Nil(t, effects)
		assert.Contains(t, same.Error, "not found")
	})
}

func TestApply_SetApplicationsKeepsUnsyncedLocal(t *testing.T) {
	st := InitialState()
	st.Applications = []types.Application{{ID: "local", SyncStatus: types.SyncPending}, {ID: "old", RemoteID: "1"}}

	s, _ := Apply(st, SetApplications{Applications: []types.Application{{ID: "remote", RemoteID: "2", SyncStatus: types.SyncSynced}}})
	ids := []string{}
	for _, a := range s.Applications {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"remote", "local"}, ids)
}

func TestApply_Import(t *testing.T) {
	st := InitialState()
	st.CloudSync = true
	st.Applications = []types.Application{{ID: "dup"}}
	goals := types.Goals{WeeklyGoal: 7, MonthlyGoal: 30, TotalGoal: 200}

	s, effects := Apply(st, ImportApplications{
		Applications: []types.Application{{ID: "dup"}, {ID: "n1", RemoteID: "stale"}, {ID: "n1"}},
		Goals:        &goals,
		At:           t0,
	})
	require.Len(t, s.Applications, 2)
	assert.Equal(t, "", s.Applications[1].RemoteID)
	assert.Equal(t, types.StatusApplied, s.Applications[1].Status)
	assert.Equal(t, goals, s.Goals)
	require.Len(t, effects, 2)
	assert.IsType(t, InsertRemote{}, effects[0])
	assert.IsType(t, SaveGoalsRemote{}, effects[1])

	bad := types.Goals{WeeklyGoal: 99, MonthlyGoal: 1, TotalGoal: 1}
	s, effects = Apply(st, ImportApplications{Applications: []types.Application{{ID: "x"}}, Goals: &bad, At: t0})
	assert.Len(t, s.Applications, 1)
	assert.Empty(t, effects)
}

func TestFiltered(t *testing.T) {
	st := InitialState()
	st.Applications = []types.Application{
		{ID: "1", Company: "Acme", Position: "Dev", DateApplied: "2026-10-01", Status: types.StatusApplied},
		{ID: "2", Company: "Globex", Position: "SRE", DateApplied: "2026-10-05", Status: types.StatusInterview, Notes: "Referral from acme alum"},
		{ID: "3", Company: "Initech", Position: "QA", DateApplied: "2026-10-03", Status: types.StatusRejected, Location: "Austin"},
	}

	ids := func(apps []types.Application) []string {
		out := []string{}
		for _, a := range apps {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []string{"2", "3", "1"}, ids(Filtered(st)))

	st.Filter = Filter{Search: "ACME"}
	assert.Equal(t, []string{"2", "1"}, ids(Filtered(st)))

	st.Filter = Filter{Search: "austin"}
	assert.Equal(t, []string{"3"}, ids(Filtered(st)))

	st.Filter = Filter{Status: types.StatusInterview}
	assert.Equal(t, []string{"2"}, ids(Filtered(st)))

	counts := StatusCounts(st.Applications)
	assert.Equal(t, 1, counts[types.StatusApplied])
	assert.Equal(t, 0, counts[types.StatusOffer])
}
