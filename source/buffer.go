package source

// growSlice grows s to have room for at least need total elements.
// New capacity is cap + cap/2 (at least cap + 1), or 1 if cap is 0,
// repeated until it covers need. It panics on overflow — callers here never pass a need
// large enough to hit it in practice (stream tables and free-lists
// grow one element at a time).
func growSlice[T any](s []T, need int) []T {
	if cap(s) >= need {
		return s
	}
	newCap := cap(s)
	if newCap == 0 {
		newCap = 1
	}
	for newCap < need {
		step := newCap / 2
		if step == 0 {
			step = 1
		}
		grown := newCap + step
		if grown <= newCap {
			panic("source: buffer capacity overflow")
		}
		newCap = grown
	}
	grown := make([]T, len(s), newCap)
	copy(grown, s)
	return grown
}
