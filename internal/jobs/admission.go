package jobs

// DefaultMaxGenerations is the per-session cap applied when none is configured.
const DefaultMaxGenerations = 5

// CanSubmit reports whether another job may be created given the number of
// jobs already created in the session.
func CanSubmit(currentCount, max int) bool {
	return currentCount < max
}

// Gate is the admission policy of a session. The cap counts every job ever
// created, whatever its status.
type Gate struct {
	Max int
}

// NewGate returns a gate with the given cap, falling back to DefaultMaxGenerations.
func NewGate(max int) Gate {
	if max <= 0 {
		max = DefaultMaxGenerations
	}
	return Gate{Max: max}
}

func (g Gate) Allow(currentCount int) bool {
	return CanSubmit(currentCount, g.Max)
}

// Remaining returns how many submissions are still admitted.
func (g Gate) Remaining(currentCount int) int {
	if n := g.Max - currentCount; n > 0 {
		return n
	}
	return 0
}
