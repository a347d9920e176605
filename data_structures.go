package main

import "sync"

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{
		members: make(map[string]struct{}),
	}
}

// NewHash creates an empty hash.
func NewHash() *Hash {
	return &Hash{
		fields: make(map[string]string),
	}
}

// List is a singly-linked list of strings, appended at the tail and
// read back front-to-back. Values are self-contained; nodes never
// point outside the list they belong to.
type List struct {
	head   *ListNode
	tail   *ListNode
	length int
	mutex  sync.RWMutex
}

type ListNode struct {
	value string
	next  *ListNode
}

// Set is an unordered collection of unique strings.
type Set struct {
	members map[string]struct{}
	mutex   sync.RWMutex
}

// Hash is a string-to-string mapping; insertion order is not preserved.
type Hash struct {
	fields map[string]string
	mutex  sync.RWMutex
}

// List methods

func (l *List) RightPush(value string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	node := &ListNode{value: value}
	if l.tail == nil {
		l.head = node
		l.tail = node
	} else {
		l.tail.next = node
		l.tail = node
	}
	l.length++
	return l.length
}

func (l *List) Length() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.length
}

func (l *List) Range(start, end int) []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if start < 0 {
		start = 0
	}
	if end >= l.length {
		end = l.length - 1
	}
	if start > end {
		return []string{}
	}

	result := make([]string, 0, end-start+1)
	current := l.head
	for i := 0; i < start; i++ {
		current = current.next
	}
	for i := start; i <= end && current != nil; i++ {
		result = append(result, current.value)
		current = current.next
	}
	return result
}

func (l *List) Values() []string {
	return l.Range(0, l.Length()-1)
}

// Set methods

// Add returns true if member was not already present.
func (s *Set) Add(member string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, exists := s.members[member]
	s.members[member] = struct{}{}
	return !exists
}

func (s *Set) Members() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	members := make([]string, 0, len(s.members))
	for member := range s.members {
		members = append(members, member)
	}
	return members
}

// Hash methods

// Set returns true if field was not already present.
func (h *Hash) Set(field, value string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	_, exists := h.fields[field]
	h.fields[field] = value
	return !exists
}

func (h *Hash) GetAll() map[string]string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	result := make(map[string]string, len(h.fields))
	for k, v := range h.fields {
		result[k] = v
	}
	return result
}

// cloneStoredValue deep-copies a StoredValue so callers never observe a
// live reference into store-internal containers: List/Set/Hash are
// mutable and shared by pointer inside a CacheEntry.
func cloneStoredValue(v StoredValue) StoredValue {
	switch v.Tag {
	case TypeList:
		nl := NewList()
		for _, item := range v.List.Values() {
			nl.RightPush(item)
		}
		return StoredValue{Tag: TypeList, List: nl}
	case TypeSet:
		ns := NewSet()
		for _, m := range v.Set.Members() {
			ns.Add(m)
		}
		return StoredValue{Tag: TypeSet, Set: ns}
	case TypeHash:
		nh := NewHash()
		for f, val := range v.Hash.GetAll() {
			nh.Set(f, val)
		}
		return StoredValue{Tag: TypeHash, Hash: nh}
	default:
		return StoredValue{Tag: TypeString, String: v.String}
	}
}
