package session

import (
	"sync"
	"testing"
	"time"
)

func TestService_GetOrCreateSession_CreatesDefault(t *testing.T) {
	t.Parallel()

	s := NewService()
	sess := s.GetOrCreateSession("abc")

	if sess.ID != "abc" {
		t.Fatalf("expected ID abc, got %s", sess.ID)
	}
	if !sess.State.LoopConfig.LoopDetectionEnabled {
		t.Error("expected loop detection enabled by default")
	}
}

func TestService_GetOrCreateSession_ReturnsExisting(t *testing.T) {
	t.Parallel()

	s := NewService()
	first := s.GetOrCreateSession("abc")
	first = s.UpdateSession("abc", func(sess Session) Session {
		sess.State = sess.State.WithProjectDir("/tmp/proj")
		return sess
	})

	second := s.GetOrCreateSession("abc")
	if second.State.ProjectDir != "/tmp/proj" {
		t.Fatalf("expected project dir to persist, got %q", second.State.ProjectDir)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Error("expected CreatedAt to be stable across GetOrCreateSession calls")
	}
}

func TestService_UpdateSession_IsAtomicPerSession(t *testing.T) {
	t.Parallel()

	s := NewService()
	s.GetOrCreateSession("race")

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.UpdateSession("race", func(sess Session) Session {
				sess.State = sess.State.IncrementPlanningTurn()
				return sess
			})
		}()
	}
	wg.Wait()

	final, ok := s.GetSession("race")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if final.State.PlanningPhaseTurnCount != n {
		t.Fatalf("expected turn count %d, got %d", n, final.State.PlanningPhaseTurnCount)
	}
}

func TestService_DeleteSession(t *testing.T) {
	t.Parallel()

	s := NewService()
	s.GetOrCreateSession("gone")
	s.DeleteSession("gone")

	if _, ok := s.GetSession("gone"); ok {
		t.Error("expected session to be deleted")
	}
}

func TestService_GetAllSessions(t *testing.T) {
	t.Parallel()

	s := NewService()
	s.GetOrCreateSession("a")
	s.GetOrCreateSession("b")

	all := s.GetAllSessions()
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
}

func TestService_TTLEviction(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now }
	s := NewService(WithTTL(time.Minute), WithClock(clock))

	s.GetOrCreateSession("stale")
	now = now.Add(2 * time.Minute)

	if _, ok := s.GetSession("stale"); ok {
		t.Error("expected session to be expired")
	}

	removed := s.EvictExpired()
	if removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if len(s.GetAllSessions()) != 0 {
		t.Error("expected no sessions remaining after eviction")
	}
}

func TestState_PlanningPhaseActive(t *testing.T) {
	t.Parallel()

	st := NewState().WithPlanningPhaseConfig(PlanningPhaseConfig{
		Enabled:     true,
		StrongModel: "claude-strong",
		MaxTurns:    2,
	})

	if !st.PlanningPhaseActive() {
		t.Fatal("expected planning phase active at turn 0")
	}
	st = st.IncrementPlanningTurn().IncrementPlanningTurn()
	if st.PlanningPhaseActive() {
		t.Error("expected planning phase inactive after reaching MaxTurns")
	}
}

func TestAppendInteraction_EvictsOldest(t *testing.T) {
	t.Parallel()

	var history []Interaction
	for i := 0; i < maxHistoryEntries+5; i++ {
		history = AppendInteraction(history, Interaction{Prompt: "x"})
	}
	if len(history) != maxHistoryEntries {
		t.Fatalf("expected history capped at %d, got %d", maxHistoryEntries, len(history))
	}
}
