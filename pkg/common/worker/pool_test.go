package worker

import (
	"sync"
	"testing"
	"time"
)

func TestSubmitBeforeInit(t *testing.T) {
	ResetForTest()
	if err := Submit(func() {}); err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestSubmitRunsJobs(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	if err := Init(4); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 3; i++ {
		wg.Add(1)
		if err := Submit(func() {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if ran != 3 {
		t.Errorf("ran = %d, want 3", ran)
	}
	s := Snapshot()
	if s.Capacity != 4 {
		t.Errorf("capacity = %d, want 4", s.Capacity)
	}
	if s.Submitted != 3 {
		t.Errorf("submitted = %d, want 3", s.Submitted)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	if err := Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Submit(func() { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if Snapshot().Panics == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected one recovered panic, stats=%+v", Snapshot())
}

func TestSaturatedPoolRejects(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	if err := Init(1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	block := make(chan struct{})
	started := make(chan struct{})
	if err := Submit(func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	if err := Submit(func() {}); err == nil {
		t.Error("expected rejection from saturated non-blocking pool")
	}
	close(block)

	if Snapshot().Rejected != 1 {
		t.Errorf("rejected = %d, want 1", Snapshot().Rejected)
	}
}
