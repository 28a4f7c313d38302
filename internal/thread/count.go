package thread

// TotalCount returns the number of descendants of a comment that are currently
// loaded. Buckets not yet fetched contribute zero, so the value is a lower bound
// until the whole subtree has been expanded once. It is always derived from the
// reply index and never cached.
func (s *Synchronizer) TotalCount(id int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(id)
}

// PostCount is TotalCount for a whole post: its loaded roots and their subtrees.
func (s *Synchronizer) PostCount(postID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roots := s.roots[postID]
	n := len(roots)
	for _, id := range roots {
		n += s.countLocked(id)
	}
	return n
}

func (s *Synchronizer) countLocked(id int64) int {
	kids := s.children[id]
	n := len(kids)
	for _, child := range kids {
		n += s.countLocked(child)
	}
	return n
}
