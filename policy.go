package hoard

// recencyOrder tracks access recency for eviction decisions.
type recencyOrder[K comparable] interface {
	touch(key K)
	trackNew(key K)
	remove(key K)
	oldest() (K, bool)
	selectVictims(bytesNeeded int64, countNeeded int, sizeOf func(K) int64) []K
	keysMRU() []K
	reset()
}

// Compile-time interface assertion.
var _ recencyOrder[string] = (*lruOrder[string])(nil)

const nilSlot = -1

type lruSlot[K comparable] struct {
	key  K
	prev int
	next int
}

// lruOrder keeps recency order in an arena of slots linked by integer
// index. Slots never hold pointers to each other, so there are no
// reference cycles; freed slots are recycled through a free list.
// Front of the list is most recently used, back is least recently used.
type lruOrder[K comparable] struct {
	slots []lruSlot[K]
	index map[K]int
	free  []int
	head  int
	tail  int
}

func newLRUOrder[K comparable]() *lruOrder[K] {
	return &lruOrder[K]{
		index: make(map[K]int),
		head:  nilSlot,
		tail:  nilSlot,
	}
}

// touch moves key to the most-recently-used position. Unknown keys are
// ignored.
func (o *lruOrder[K]) touch(key K) {
	i, ok := o.index[key]
	if !ok || i == o.head {
		return
	}
	o.unlink(i)
	o.pushFront(i)
}

// trackNew inserts key at the most-recently-used position. An already
// tracked key is moved to the front instead.
func (o *lruOrder[K]) trackNew(key K) {
	if _, ok := o.index[key]; ok {
		o.touch(key)
		return
	}
	i := o.alloc(key)
	o.index[key] = i
	o.pushFront(i)
}

// remove detaches key from the order and recycles its slot.
func (o *lruOrder[K]) remove(key K) {
	i, ok := o.index[key]
	if !ok {
		return
	}
	o.unlink(i)
	delete(o.index, key)
	var zero K
	o.slots[i].key = zero
	o.free = append(o.free, i)
}

// oldest returns the least-recently-used key.
func (o *lruOrder[K]) oldest() (K, bool) {
	if o.tail == nilSlot {
		var zero K
		return zero, false
	}
	return o.slots[o.tail].key, true
}

// selectVictims walks from the least-recently-used end, accumulating
// keys until the freed byte and count requirements are both met. If the
// order is exhausted first, every tracked key is returned and the
// caller decides how to proceed.
func (o *lruOrder[K]) selectVictims(bytesNeeded int64, countNeeded int, sizeOf func(K) int64) []K {
	var victims []K
	var freedBytes int64
	for i := o.tail; i != nilSlot; i = o.slots[i].prev {
		if freedBytes >= bytesNeeded && len(victims) >= countNeeded {
			break
		}
		key := o.slots[i].key
		victims = append(victims, key)
		freedBytes += sizeOf(key)
	}
	return victims
}

// keysMRU returns all tracked keys, most recently used first.
func (o *lruOrder[K]) keysMRU() []K {
	keys := make([]K, 0, len(o.index))
	for i := o.head; i != nilSlot; i = o.slots[i].next {
		keys = append(keys, o.slots[i].key)
	}
	return keys
}

func (o *lruOrder[K]) reset() {
	o.slots = o.slots[:0]
	o.index = make(map[K]int)
	o.free = o.free[:0]
	o.head = nilSlot
	o.tail = nilSlot
}

func (o *lruOrder[K]) alloc(key K) int {
	if n := len(o.free); n > 0 {
		i := o.free[n-1]
		o.free = o.free[:n-1]
		o.slots[i] = lruSlot[K]{key: key, prev: nilSlot, next: nilSlot}
		return i
	}
	o.slots = append(o.slots, lruSlot[K]{key: key, prev: nilSlot, next: nilSlot})
	return len(o.slots) - 1
}

func (o *lruOrder[K]) pushFront(i int) {
	o.slots[i].prev = nilSlot
	o.slots[i].next = o.head
	if o.head != nilSlot {
		o.slots[o.head].prev = i
	}
	o.head = i
	if o.tail == nilSlot {
		o.tail = i
	}
}

func (o *lruOrder[K]) unlink(i int) {
	prev, next := o.slots[i].prev, o.slots[i].next
	if prev != nilSlot {
		o.slots[prev].next = next
	} else {
		o.head = next
	}
	if next != nilSlot {
		o.slots[next].prev = prev
	} else {
		o.tail = prev
	}
	o.slots[i].prev = nilSlot
	o.slots[i].next = nilSlot
}
