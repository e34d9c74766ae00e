package internal

import (
	"context"
	"errors"
	"testing"
)

func openTestStore(t *testing.T, dir string) *StateStore {
	t.Helper()
	store, err := OpenStateStore(dir)
	if err != nil {
		t.Fatalf("OpenStateStore(%s): %v", dir, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStateStorePersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	item := WorkItem{ID: "dQw4w9WgXcQ", SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}

	store := openTestStore(t, dir)
	if err := store.Touch(ctx, item); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	artifacts := Artifacts{"transcript": "/tmp/dQw4w9WgXcQ.txt"}
	if err := store.SetPhase(ctx, item.ID, PhaseAcquire, PhaseComplete, artifacts, ""); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}
	if err := store.SetPhase(ctx, item.ID, PhaseTranscribe, PhaseFailed, nil, "boom"); err != nil {
		t.Fatalf("SetPhase failed status: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and verify everything survived the restart.
	store = openTestStore(t, dir)
	state, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state == nil {
		t.Fatal("Get returned nil for a touched item")
	}
	if state.SourceURL != item.SourceURL {
		t.Errorf("SourceURL = %q, want %q", state.SourceURL, item.SourceURL)
	}
	if got := state.Phase(PhaseAcquire); got.Status != PhaseComplete || got.Artifacts["transcript"] != "/tmp/dQw4w9WgXcQ.txt" {
		t.Errorf("acquire record = %+v, want complete with transcript artifact", got)
	}
	if got := state.Phase(PhaseTranscribe); got.Status != PhaseFailed || got.Error != "boom" {
		t.Errorf("transcribe record = %+v, want failed with error boom", got)
	}
	if got := state.Phase(PhaseAnalyze); got.Status != PhaseNotStarted {
		t.Errorf("analyze status = %q, want not_started", got.Status)
	}
	if state.LastError != "boom" {
		t.Errorf("LastError = %q, want boom", state.LastError)
	}
}

func TestStateStoreGetUnknownItem(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	state, err := store.Get(context.Background(), "AAAAAAAAAAA")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state != nil {
		t.Errorf("Get for unknown item = %+v, want nil", state)
	}
}

func TestStateStoreTouchIsIdempotent(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()
	item := WorkItem{ID: "dQw4w9WgXcQ", SourceURL: "https://youtu.be/dQw4w9WgXcQ"}

	if err := store.Touch(ctx, item); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := store.SetPhase(ctx, item.ID, PhaseAcquire, PhaseComplete, Artifacts{"a": "b"}, ""); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}
	if err := store.Touch(ctx, item); err != nil {
		t.Fatalf("second Touch: %v", err)
	}
	state, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.Phase(PhaseAcquire).Status != PhaseComplete {
		t.Error("second Touch clobbered existing phase records")
	}
}

func TestStateStoreSuccessClearsLastError(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()
	item := WorkItem{ID: "dQw4w9WgXcQ"}

	if err := store.Touch(ctx, item); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := store.SetPhase(ctx, item.ID, PhaseAcquire, PhaseFailed, nil, "network down"); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}
	if err := store.SetPhase(ctx, item.ID, PhaseAcquire, PhaseComplete, nil, ""); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}

	state, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.LastError != "" {
		t.Errorf("LastError = %q, want cleared after success", state.LastError)
	}
}

func TestStateStoreResetFailed(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()
	item := WorkItem{ID: "dQw4w9WgXcQ"}

	if err := store.Touch(ctx, item); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := store.SetPhase(ctx, item.ID, PhaseAcquire, PhaseComplete, Artifacts{"transcript": "t.txt"}, ""); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}
	if err := store.SetPhase(ctx, item.ID, PhaseTranscribe, PhaseFailed, nil, "whisper exploded"); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}

	if err := store.ResetFailed(ctx, item.ID); err != nil {
		t.Fatalf("ResetFailed: %v", err)
	}

	state, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := state.Phase(PhaseTranscribe).Status; got != PhaseNotStarted {
		t.Errorf("transcribe status after reset = %q, want not_started", got)
	}
	if got := state.Phase(PhaseAcquire).Status; got != PhaseComplete {
		t.Errorf("acquire status after reset = %q, want complete (untouched)", got)
	}
	if state.LastError != "" {
		t.Errorf("LastError after reset = %q, want empty", state.LastError)
	}
}

func TestStateStoreList(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"AAAAAAAAAAA", "BBBBBBBBBBB"} {
		if err := store.Touch(ctx, WorkItem{ID: id}); err != nil {
			t.Fatalf("Touch(%s): %v", id, err)
		}
	}

	states, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("List returned %d states, want 2", len(states))
	}
}

func TestStateStoreLocked(t *testing.T) {
	dir := t.TempDir()
	openTestStore(t, dir)

	_, err := OpenStateStore(dir)
	if !errors.Is(err, ErrStoreLocked) {
		t.Fatalf("second OpenStateStore error = %v, want ErrStoreLocked", err)
	}
}
