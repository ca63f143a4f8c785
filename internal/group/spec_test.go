package group

import (
	"context"
	"strings"
	"testing"
)

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"one proc", Spec{Procs: 1}, false},
		{"many procs", Spec{Procs: 8, StartMode: StartModeSpawn}, false},
		{"fork mode", Spec{Procs: 2, StartMode: StartModeFork}, false},
		{"zero procs", Spec{Procs: 0}, true},
		{"negative procs", Spec{Procs: -1}, true},
		{"unknown start mode", Spec{Procs: 2, StartMode: "thread"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	id := identityFor(0, 4)
	if !id.IsProducer() {
		t.Error("rank 0 should be the producer")
	}
	if !id.IsGlobalZero() {
		t.Error("rank 0 should be global zero")
	}

	id = identityFor(3, 4)
	if id.IsProducer() {
		t.Error("rank 3 should not be the producer")
	}
	if id.IsGlobalZero() {
		t.Error("rank 3 should not be global zero")
	}
	if id.ProcessIndex != 3 || id.LocalRank != 3 || id.GlobalRank != 3 || id.WorldSize != 4 {
		t.Errorf("identityFor(3, 4) = %+v", id)
	}
}

func TestIdentity_String(t *testing.T) {
	s := identityFor(1, 2).String()
	if !strings.Contains(s, "worker 1/2") {
		t.Errorf("String() = %q", s)
	}
}

func TestRegistry(t *testing.T) {
	Register("registry-test-entry", func(ctx context.Context, w *Worker) error { return nil })

	entry, err := Lookup("registry-test-entry")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("Lookup returned nil entry")
	}

	if _, err := Lookup("never-registered"); err == nil {
		t.Error("Lookup of unknown name should fail")
	}

	found := false
	for _, name := range RegisteredEntries() {
		if name == "registry-test-entry" {
			found = true
		}
	}
	if !found {
		t.Error("RegisteredEntries missing registered name")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("registry-dup-entry", func(ctx context.Context, w *Worker) error { return nil })
	Register("registry-dup-entry", func(ctx context.Context, w *Worker) error { return nil })
}
