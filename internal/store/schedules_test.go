package store

import (
	"testing"
	"time"

	regentErrors "github.com/regnantlabs/regent/internal/errors"
)

func TestSchedulePutGetDelete(t *testing.T) {
	s := openTestStore(t)

	schedule := &Schedule{
		ID:          "sched-1",
		WorkspaceID: "ws-1",
		ActorID:     "actor-1",
		Intent:      "echo",
		CronExpr:    "*/5 * * * *",
		Enabled:     true,
		NextRun:     time.Now().UTC().Add(5 * time.Minute),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.PutSchedule(schedule); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSchedule("sched-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CronExpr != "*/5 * * * *" || !got.Enabled {
		t.Errorf("Unexpected schedule %+v", got)
	}

	if err := s.DeleteSchedule("sched-1"); err != nil {
		t.Fatal(err)
	}
	_, err = s.GetSchedule("sched-1")
	if !regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}

func TestDeleteScheduleNotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.DeleteSchedule("missing")
	if !regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestListSchedulesByWorkspace(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"a", "b"} {
		if err := s.PutSchedule(&Schedule{ID: id, WorkspaceID: "ws-1", Intent: "echo", CronExpr: "* * * * *"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.PutSchedule(&Schedule{ID: "c", WorkspaceID: "ws-2", Intent: "echo", CronExpr: "* * * * *"}); err != nil {
		t.Fatal(err)
	}

	schedules, err := s.ListSchedules("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 2 {
		t.Errorf("Expected 2 schedules for ws-1, got %d", len(schedules))
	}

	schedules, err = s.ListSchedules("")
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 3 {
		t.Errorf("Expected 3 schedules total, got %d", len(schedules))
	}
}

func TestExecutionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := &ExecutionRecord{
		ID:          "exec-1",
		CommandID:   "cmd-1",
		WorkspaceID: "ws-1",
		Success:     true,
		Output:      "done",
		Provenance:  map[string]string{"pack_id": "pack-7"},
		StartedAt:   time.Now().UTC(),
		FinishedAt:  time.Now().UTC(),
	}
	if err := s.PutExecution(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetExecution("exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Success || got.Output != "done" || got.Provenance["pack_id"] != "pack-7" {
		t.Errorf("Unexpected execution record %+v", got)
	}

	_, err = s.GetExecution("missing")
	if !regentErrors.IsCategory(err, regentErrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}
