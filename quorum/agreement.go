package quorum

import "bytes"

// Agreement is the byte-equality agreement primitive (spec §4.2): given up
// to three responses (a designated comparison slice from each, typically a
// 64-byte signature), it decides how many of them agree.
//
// The first response to arrive becomes the left anchor. Every later
// arrival is compared against the anchor; status starts at 1 (just the
// anchor) and is incremented on a match. If the third response arrives and
// does not match the anchor, it is compared a second time against the
// second arrival instead, so that any two of the three matching — not
// just the first two — yields status 2. Every Add re-runs all comparisons
// from scratch; rightOffset records the arrival position of the last
// response compared.
type Agreement struct {
	order       []int
	responses   [3][]byte
	rightOffset int
	status      int
}

// NewAgreement returns an empty Agreement.
func NewAgreement() *Agreement {
	return &Agreement{}
}

// Add records response b for socket slot i and recomputes status. Adding
// the same slot twice replaces its response and re-triggers comparison
// from scratch for that slot's position in arrival order.
func (a *Agreement) Add(i int, b []byte) {
	found := false
	for _, j := range a.order {
		if j == i {
			found = true
			break
		}
	}
	if !found {
		a.order = append(a.order, i)
	}
	a.responses[i] = b
	a.recompute()
}

func (a *Agreement) recompute() {
	if len(a.order) == 0 {
		a.status = 0
		a.rightOffset = 0
		return
	}
	a.status = 1
	anchor := a.order[0]
	for k := 1; k < len(a.order); k++ {
		j := a.order[k]
		if bytes.Equal(a.responses[anchor], a.responses[j]) {
			a.status++
			a.rightOffset = k
			continue
		}
		if k == 2 {
			// Third response didn't match the anchor; retry against the
			// second arrival so any two-of-three match is still detected.
			second := a.order[1]
			if bytes.Equal(a.responses[second], a.responses[j]) {
				a.status = 2
			}
		}
		a.rightOffset = k
	}
}

// Status reports the current agreement count (0 if nothing has arrived
// yet, otherwise 1..3).
func (a *Agreement) Status() int {
	return a.status
}

// Response returns the response recorded for slot i, if any.
func (a *Agreement) Response(i int) ([]byte, bool) {
	b := a.responses[i]
	return b, b != nil
}

// Reset clears all recorded responses, as done when a new polling round
// begins.
func (a *Agreement) Reset() {
	a.order = nil
	a.responses = [3][]byte{}
	a.rightOffset = 0
	a.status = 0
}
