package hoard

// tagIndex maintains a reverse index from tag to the set of keys
// carrying that tag. Every operation touches only the tags passed to
// it; nothing scans the full index.
type tagIndex[K comparable] struct {
	byTag map[string]map[K]struct{}
}

func newTagIndex[K comparable]() *tagIndex[K] {
	return &tagIndex[K]{byTag: make(map[string]map[K]struct{})}
}

// index adds key to each tag's set, creating sets as needed.
func (t *tagIndex[K]) index(key K, tags []string) {
	for _, tag := range tags {
		set, ok := t.byTag[tag]
		if !ok {
			set = make(map[K]struct{})
			t.byTag[tag] = set
		}
		set[key] = struct{}{}
	}
}

// deindex removes key from each tag's set. A set that becomes empty is
// removed from the index, so the index never holds dead tags.
func (t *tagIndex[K]) deindex(key K, tags []string) {
	for _, tag := range tags {
		set, ok := t.byTag[tag]
		if !ok {
			continue
		}
		delete(set, key)
		if len(set) == 0 {
			delete(t.byTag, tag)
		}
	}
}

// keysFor returns a copy of the keys indexed under tag. Unknown tags
// yield an empty slice.
func (t *tagIndex[K]) keysFor(tag string) []K {
	set, ok := t.byTag[tag]
	if !ok {
		return nil
	}
	keys := make([]K, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

func (t *tagIndex[K]) reset() {
	t.byTag = make(map[string]map[K]struct{})
}
