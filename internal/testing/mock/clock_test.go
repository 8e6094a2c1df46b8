package mock

import (
	"sync"
	"testing"
	"time"
)

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	if !clock.Now().Equal(fixedTime) {
		t.Errorf("Expected time %v, got %v", fixedTime, clock.Now())
	}

	// Calling Now multiple times should return the same time
	if !clock.Now().Equal(fixedTime) {
		t.Errorf("Expected time to remain stable at %v, got %v", fixedTime, clock.Now())
	}
}

func TestMockClock_ZeroStartsAtNow(t *testing.T) {
	before := time.Now()
	clock := NewMockClock(time.Time{})
	if clock.Now().Before(before) {
		t.Errorf("expected clock to start at or after %v, got %v", before, clock.Now())
	}
}

func TestMockClock_AdvanceAndSet(t *testing.T) {
	startTime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(startTime)

	clock.Advance(5 * time.Minute)
	if want := startTime.Add(5 * time.Minute); !clock.Now().Equal(want) {
		t.Errorf("Expected %v after Advance, got %v", want, clock.Now())
	}

	clock.Set(startTime)
	if !clock.Now().Equal(startTime) {
		t.Errorf("Expected %v after Set, got %v", startTime, clock.Now())
	}
}

func TestMockClock_ConcurrentAccess(t *testing.T) {
	clock := NewMockClock(time.Time{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
		go func() {
			defer wg.Done()
			_ = clock.Now()
		}()
	}
	wg.Wait()
}
