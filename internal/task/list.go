package task

// List is an intrusive singly-linked list of tasks, used as a worklist, a
// ready queue, and a discard worklist. A task may be on at most one list at a
// time. Lists are not thread-safe: each is owned by a single worker or
// guarded by its container.
//
// The zero value is an empty list.
type List struct {
	head *Task
	tail *Task
	size int
}

// Empty reports whether the list has no tasks.
func (l *List) Empty() bool { return l.head == nil }

// Len returns the number of tasks on the list.
func (l *List) Len() int { return l.size }

// PushFront prepends t.
func (l *List) PushFront(t *Task) {
	t.next = l.head
	l.head = t
	if l.tail == nil {
		l.tail = t
	}
	l.size++
}

// PushBack appends t.
func (l *List) PushBack(t *Task) {
	t.next = nil
	if l.tail != nil {
		l.tail.next = t
	} else {
		l.head = t
	}
	l.tail = t
	l.size++
}

// PopFront removes and returns the first task, or nil when empty.
func (l *List) PopFront() *Task {
	t := l.head
	if t == nil {
		return nil
	}
	l.head = t.next
	if l.head == nil {
		l.tail = nil
	}
	t.next = nil
	l.size--
	return t
}

// Concat appends all tasks of other and leaves other empty.
func (l *List) Concat(other *List) {
	if other.head == nil {
		return
	}
	if l.tail != nil {
		l.tail.next = other.head
	} else {
		l.head = other.head
	}
	l.tail = other.tail
	l.size += other.size
	other.head = nil
	other.tail = nil
	other.size = 0
}

// DiscardAll drains the list, discarding every task without executing it.
// Each task's cleanup runs with status.ErrAborted and its downstream tasks
// are pushed onto the list head, so the walk is LIFO for locality.
func (l *List) DiscardAll() {
	for t := l.PopFront(); t != nil; t = l.PopFront() {
		Discard(t, l)
	}
}
