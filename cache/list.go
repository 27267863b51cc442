package cache

// ageNode is a node in a doubly-linked insertion-order list.
// The node stores a key for O(1) deletion from the parent map.
type ageNode[K comparable] struct {
	key  K
	prev *ageNode[K]
	next *ageNode[K]
}

// ageList orders live entries by insertion time.
// The list is not thread-safe; callers must handle synchronization.
//
// The head is the newest insertion, tail is the oldest.
type ageList[K comparable] struct {
	head *ageNode[K]
	tail *ageNode[K]
	len  int
}

// Len returns the number of nodes in the list.
func (l *ageList[K]) Len() int {
	return l.len
}

// PushFront adds a new node at the front (newest).
// Returns the created node for later access.
func (l *ageList[K]) PushFront(key K) *ageNode[K] {
	node := &ageNode[K]{key: key}
	l.linkFront(node)
	return node
}

// MoveToFront marks an existing node as the newest insertion.
// Used when a key is overwritten.
func (l *ageList[K]) MoveToFront(node *ageNode[K]) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove removes a node from the list.
func (l *ageList[K]) Remove(node *ageNode[K]) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// WalkOldest calls fn for each key from oldest to newest until fn returns false.
// fn must not mutate the list; collect keys and remove them afterwards.
func (l *ageList[K]) WalkOldest(fn func(key K) bool) {
	for n := l.tail; n != nil; n = n.prev {
		if !fn(n.key) {
			return
		}
	}
}

func (l *ageList[K]) linkFront(node *ageNode[K]) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

// unlink removes a node from the list and clears its pointers.
func (l *ageList[K]) unlink(node *ageNode[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	l.len--
}
