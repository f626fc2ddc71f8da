package registry

const nilIndex = -1

// genList is an intrusive FIFO of slot indices. Links live in the
// slots, so a slot can sit in at most one list at a time.
type genList struct {
	head int
	tail int
	size int
}

func newGenList() genList {
	return genList{head: nilIndex, tail: nilIndex}
}

func (l *genList) pushBack(slots []slot, i int) {
	s := &slots[i]
	s.prev = l.tail
	s.next = nilIndex
	if l.tail == nilIndex {
		l.head = i
	} else {
		slots[l.tail].next = i
	}
	l.tail = i
	l.size++
}

func (l *genList) remove(slots []slot, i int) {
	s := &slots[i]
	if s.prev == nilIndex {
		l.head = s.next
	} else {
		slots[s.prev].next = s.next
	}
	if s.next == nilIndex {
		l.tail = s.prev
	} else {
		slots[s.next].prev = s.prev
	}
	s.prev = nilIndex
	s.next = nilIndex
	l.size--
}

// appendAll moves every member of src to the back of l.
func (l *genList) appendAll(slots []slot, src *genList) {
	if src.head == nilIndex {
		return
	}
	if l.tail == nilIndex {
		l.head = src.head
	} else {
		slots[l.tail].next = src.head
		slots[src.head].prev = l.tail
	}
	l.tail = src.tail
	l.size += src.size
	*src = newGenList()
}
