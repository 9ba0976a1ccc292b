// Package locks provides the coarse lock classes that serialize critical
// sections across goroutines. Hold at most one class at a time, or take them
// in declaration order.
package locks

import "sync"

type Class int

const (
	Message Class = iota
	Receive
	Ban
	Admin
	Preview
	Test
	numClasses
)

var names = [...]string{"message", "receive", "ban", "admin", "preview", "test"}

func (c Class) String() string { return names[c] }

type Set struct {
	mus [numClasses]sync.Mutex
}

// With runs fn holding the class lock.
func (s *Set) With(c Class, fn func()) {
	s.mus[c].Lock()
	defer s.mus[c].Unlock()
	fn()
}

func (s *Set) Lock(c Class)   { s.mus[c].Lock() }
func (s *Set) Unlock(c Class) { s.mus[c].Unlock() }
