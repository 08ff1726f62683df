package desktop

// arena stores entities by key while remembering insertion order. Entities
// refer to each other by key and resolve through the owning arena, never by
// pointer, so removal cannot leave a dangling owner.
type arena[K comparable, V any] struct {
	index map[K]int
	slots []slot[K, V]
}

type slot[K comparable, V any] struct {
	key K
	val V
}

func newArena[K comparable, V any]() *arena[K, V] {
	return &arena[K, V]{index: make(map[K]int)}
}

// put inserts v under k. It reports false, leaving the arena unchanged, when
// k is already present.
func (a *arena[K, V]) put(k K, v V) bool {
	if _, ok := a.index[k]; ok {
		return false
	}
	a.index[k] = len(a.slots)
	a.slots = append(a.slots, slot[K, V]{key: k, val: v})
	return true
}

func (a *arena[K, V]) get(k K) (V, bool) {
	i, ok := a.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return a.slots[i].val, true
}

func (a *arena[K, V]) has(k K) bool {
	_, ok := a.index[k]
	return ok
}

// remove deletes k and returns its value. Order of the remaining entries is
// preserved.
func (a *arena[K, V]) remove(k K) (V, bool) {
	i, ok := a.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	v := a.slots[i].val
	copy(a.slots[i:], a.slots[i+1:])
	a.slots[len(a.slots)-1] = slot[K, V]{}
	a.slots = a.slots[:len(a.slots)-1]
	delete(a.index, k)
	for j := i; j < len(a.slots); j++ {
		a.index[a.slots[j].key] = j
	}
	return v, true
}

func (a *arena[K, V]) len() int { return len(a.slots) }

// values returns a snapshot in insertion order.
func (a *arena[K, V]) values() []V {
	out := make([]V, len(a.slots))
	for i, s := range a.slots {
		out[i] = s.val
	}
	return out
}

func (a *arena[K, V]) clear() {
	a.index = make(map[K]int)
	a.slots = nil
}
