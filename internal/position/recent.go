package position

// recentSet remembers the last n keys in insertion order.
type recentSet struct {
	keys  map[string]struct{}
	ring  []string
	next  int
	limit int
}

func newRecentSet(limit int) *recentSet {
	return &recentSet{keys: make(map[string]struct{}, limit), ring: make([]string, 0, limit), limit: limit}
}

// Add records key and reports whether it was absent.
func (s *recentSet) Add(key string) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	if len(s.ring) < s.limit {
		s.ring = append(s.ring, key)
	} else {
		delete(s.keys, s.ring[s.next])
		s.ring[s.next] = key
		s.next = (s.next + 1) % s.limit
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *recentSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}
