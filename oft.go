package blockfs

import (
	log "github.com/sirupsen/logrus"
)

// DefaultOpenFiles bounds the open file table.
const DefaultOpenFiles = 32

// ofte binds an inode to one descriptor's cursor. The cursor may run past
// the current size; that is a logical hole until a write lands there.
type ofte struct {
	inum uint32
	curs int64
	refs int
}

func (e *ofte) verify() {
	if e.refs < 0 {
		log.Panicf("negative refcount %d on inum %d", e.refs, e.inum)
	}
}

// OpenFileTable is an arena of open-file slots. A descriptor is the slot
// index, stable for the life of the entry; freed slots are recycled from a
// free list rather than scanned for.
type OpenFileTable struct {
	entries   []*ofte
	freeSlots []int
}

func NewOpenFileTable(capacity int) *OpenFileTable {
	t := &OpenFileTable{
		entries:   make([]*ofte, capacity),
		freeSlots: make([]int, 0, capacity),
	}
	for fd := capacity - 1; fd >= 0; fd-- {
		t.freeSlots = append(t.freeSlots, fd)
	}
	return t
}

// Bind claims a slot for inum with cursor 0 and refcount 1 and returns the
// descriptor. Each open gets its own slot; descriptors are never
// deduplicated by inode.
func (t *OpenFileTable) Bind(inum uint32) (int, error) {
	if t.Full() {
		return 0, ErrTooManyOpen
	}
	fd := t.freeSlots[len(t.freeSlots)-1]
	t.freeSlots = t.freeSlots[:len(t.freeSlots)-1]
	t.entries[fd] = &ofte{inum: inum, refs: 1}
	return fd, nil
}

// Full reports whether no slots remain.
func (t *OpenFileTable) Full() bool {
	return len(t.freeSlots) == 0
}

// Get resolves a descriptor to its entry.
func (t *OpenFileTable) Get(fd int) (*ofte, error) {
	if fd < 0 || fd >= len(t.entries) || t.entries[fd] == nil {
		return nil, ErrBadDescriptor
	}
	return t.entries[fd], nil
}

// Deref drops one reference; at zero the slot goes back to the free pool.
func (t *OpenFileTable) Deref(fd int) error {
	e, err := t.Get(fd)
	if err != nil {
		return err
	}
	e.refs--
	e.verify()
	if e.refs == 0 {
		t.entries[fd] = nil
		t.freeSlots = append(t.freeSlots, fd)
	}
	return nil
}

// FindByInum reports whether any open descriptor is bound to inum.
func (t *OpenFileTable) FindByInum(inum uint32) (int, bool) {
	for fd, e := range t.entries {
		if e != nil && e.inum == inum {
			return fd, true
		}
	}
	return 0, false
}
