package noti

import (
	"strconv"
	"sync"
)

const DefaultMemoryCapacity = 100

// MemoryNotifier keeps the latest toasts so the console can poll them.
type MemoryNotifier struct {
	mutex    sync.RWMutex
	capacity int
	events   []map[string]interface{}
}

// NewMemoryNotifier accepts the capacity as an optional argument.
func NewMemoryNotifier(args []string) (Notifier, error) {
	capacity := DefaultMemoryCapacity
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			capacity = n
		}
	}
	return &MemoryNotifier{capacity: capacity}, nil
}

func (mn *MemoryNotifier) push(obj map[string]interface{}) {
	mn.mutex.Lock()
	defer mn.mutex.Unlock()
	mn.events = append(mn.events, obj)
	if len(mn.events) > mn.capacity {
		mn.events = mn.events[len(mn.events)-mn.capacity:]
	}
}

func (mn *MemoryNotifier) start(in chan *Event) {
	for event := range in {
		mn.push(event.Obj())
	}
}

func (mn *MemoryNotifier) NewNotification() chan *Event {
	in := make(chan *Event, 100)
	go mn.start(in)
	return in
}

// Recent returns up to limit latest toasts, newest last; limit <= 0 returns all.
func (mn *MemoryNotifier) Recent(limit int) []map[string]interface{} {
	mn.mutex.RLock()
	defer mn.mutex.RUnlock()
	events := mn.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]map[string]interface{}{}, events...)
}
