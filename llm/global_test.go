package llm

import (
	"context"
	"testing"
)

func TestGlobalCallStore_NilUntilInit(t *testing.T) {
	ResetGlobalCallStore()
	t.Cleanup(ResetGlobalCallStore)

	if got := GlobalCallStore(); got != nil {
		t.Errorf("GlobalCallStore() = %v, want nil before init", got)
	}
}

func TestInitGlobalCallStore_FirstCallWins(t *testing.T) {
	ResetGlobalCallStore()
	t.Cleanup(ResetGlobalCallStore)

	archiver := &recordingArchiver{}
	first := InitGlobalCallStore(archiver, WithRingSize(4))
	if first == nil {
		t.Fatal("InitGlobalCallStore() returned nil")
	}
	if got := GlobalCallStore(); got != first {
		t.Error("GlobalCallStore() should return the initialized store")
	}

	second := InitGlobalCallStore(nil)
	if second != first {
		t.Error("second init should keep the first store")
	}

	ctx := context.Background()
	if err := GlobalCallStore().Store(ctx, testRecord("req-global")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if archiver.count() != 1 {
		t.Errorf("archiver records = %d, want 1 (first init's archiver kept)", archiver.count())
	}
}
