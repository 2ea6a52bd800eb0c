package quorum

// maxInFlightRounds bounds the request table so a peer that never answers
// cannot grow it without limit (Design Note 5): completed rounds are
// deleted eagerly, so this cap is purely a defensive backstop.
const maxInFlightRounds = 16

// RequestTable tracks one in-flight Agreement per outstanding round,
// keyed by whatever the caller uses to identify a round (package
// computerstate keys its single round with a constant; transferstatus
// keeps its own per-reporter Agreement array instead). It has no locking,
// unlike the teacher's mutex-guarded Static/WeightedStatic: it is used
// only by the goroutine of the verifier that owns it.
type RequestTable struct {
	rounds map[int]*Agreement
	order  []int // insertion order, oldest first, for eviction
	onEvict func(key int)
}

// NewRequestTable returns an empty RequestTable. onEvict, if non-nil, is
// called when a round is dropped to make room for a new one under the
// maxInFlightRounds cap.
func NewRequestTable(onEvict func(key int)) *RequestTable {
	return &RequestTable{rounds: make(map[int]*Agreement), onEvict: onEvict}
}

// Open starts (or restarts) a round for key and returns its Agreement.
func (t *RequestTable) Open(key int) *Agreement {
	if a, ok := t.rounds[key]; ok {
		a.Reset()
		return a
	}
	if len(t.order) >= maxInFlightRounds {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.rounds, oldest)
		if t.onEvict != nil {
			t.onEvict(oldest)
		}
	}
	a := NewAgreement()
	t.rounds[key] = a
	t.order = append(t.order, key)
	return a
}

// Get returns the Agreement for key, if a round is open for it.
func (t *RequestTable) Get(key int) (*Agreement, bool) {
	a, ok := t.rounds[key]
	return a, ok
}

// Close removes key's round, e.g. once all three responses have arrived
// or the next request for that key has been issued.
func (t *RequestTable) Close(key int) {
	if _, ok := t.rounds[key]; !ok {
		return
	}
	delete(t.rounds, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of open rounds.
func (t *RequestTable) Len() int {
	return len(t.rounds)
}
