package app

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/calvinlauco/scrum-poker/internal/domain"
)

// Count always equals binds minus successful unbinds.
func TestRegistry_CountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry(0)
		live := map[domain.ClientID]bool{}
		ops := rapid.SliceOf(rapid.IntRange(0, 9)).Draw(t, "ops")
		for i, op := range ops {
			if op < 6 {
				id := domain.NewClientID()
				if err := r.Bind(id, &domain.User{ID: "u"}, &fakePush{}); err != nil {
					t.Fatalf("op %d: bind: %v", i, err)
				}
				live[id] = true
				continue
			}
			var victim domain.ClientID = "missing"
			for id := range live {
				victim = id
				break
			}
			removed := r.Unbind(victim)
			if removed != live[victim] {
				t.Fatalf("op %d: unbind(%s)=%v, want %v", i, victim, removed, live[victim])
			}
			delete(live, victim)
		}
		if r.Count() != len(live) {
			t.Fatalf("count %d, want %d", r.Count(), len(live))
		}
	})
}
