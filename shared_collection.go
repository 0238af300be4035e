// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import "sync"

// A generic, thread-safe map keyed by string ids. Used for the server's live
// session table.
type SharedCollection[T any] struct {
	objectMap map[string]T
	sync.Mutex
}

func NewSharedCollection[T any]() *SharedCollection[T] {
	return &SharedCollection[T]{
		objectMap: make(map[string]T),
	}
}

func (s *SharedCollection[T]) Add(id string, obj T) {
	s.Lock()
	defer s.Unlock()
	s.objectMap[id] = obj
}

// Remove deletes the object with the given id, if it exists.
// Returns true if the object was removed.
func (s *SharedCollection[T]) Remove(id string) bool {
	s.Lock()
	defer s.Unlock()

	if _, exists := s.objectMap[id]; exists {
		delete(s.objectMap, id)
		return true
	}
	return false
}

func (s *SharedCollection[T]) Get(id string) (T, bool) {
	s.Lock()
	defer s.Unlock()

	obj, found := s.objectMap[id]
	return obj, found
}

// ForEach calls the callback for each object over a copy of the map, so the
// callback may mutate the collection.
func (s *SharedCollection[T]) ForEach(callback func(id string, obj T)) {
	s.Lock()
	localCopy := make(map[string]T, len(s.objectMap))
	for id, obj := range s.objectMap {
		localCopy[id] = obj
	}
	s.Unlock()

	for id, obj := range localCopy {
		callback(id, obj)
	}
}

func (s *SharedCollection[T]) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.objectMap)
}
