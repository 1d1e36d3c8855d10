package libsio

// topicSet is an insertion ordered set, so replays announce topics in the
// order they were subscribed.
type topicSet struct {
	order []Topic
	index map[Topic]struct{}
}

func newTopicSet() topicSet {
	return topicSet{index: make(map[Topic]struct{})}
}

func (s *topicSet) add(t Topic) bool {
	if _, ok := s.index[t]; ok {
		return false
	}
	s.index[t] = struct{}{}
	s.order = append(s.order, t)
	return true
}

func (s *topicSet) remove(t Topic) bool {
	if _, ok := s.index[t]; !ok {
		return false
	}
	delete(s.index, t)
	for i, o := range s.order {
		if o == t {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *topicSet) has(t Topic) bool {
	_, ok := s.index[t]
	return ok
}

func (s *topicSet) list() []Topic {
	out := make([]Topic, len(s.order))
	copy(out, s.order)
	return out
}

func (s *topicSet) len() int {
	return len(s.order)
}
