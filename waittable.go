package coloop

import (
	"maps"
	"slices"
)

// waitTable maps a descriptor to the single Runnable blocked on it
// in one direction.
type waitTable struct {
	m map[int]Runnable
}

// set registers r for fd, reporting whether it replaced an earlier
// registration.
func (w *waitTable) set(fd int, r Runnable) bool {
	if w.m == nil {
		w.m = make(map[int]Runnable)
	}
	_, replaced := w.m[fd]
	w.m[fd] = r
	return replaced
}

func (w *waitTable) pop(fd int) (Runnable, bool) {
	r, ok := w.m[fd]
	if ok {
		delete(w.m, fd)
	}
	return r, ok
}

func (w *waitTable) len() int {
	return len(w.m)
}

// fds returns the registered descriptors in ascending order.
func (w *waitTable) fds() []int {
	if len(w.m) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(w.m))
}
