package texture

import (
	"github.com/golang/groupcache/lru"
	"github.com/sirupsen/logrus"

	"mriview/pkg/gpu"
)

type listEntry struct {
	dev    gpu.Device
	id     gpu.ListID
	recipe any
}

// Lists caches display lists per slot. Each slot holds at most one list,
// bound to the recipe it was built from: asking for a slot with a different
// recipe frees the old list before building the new one. Slots beyond the
// capacity are evicted least recently used, releasing their lists.
//
// Recipes must be comparable with ==.
type Lists struct {
	cache *lru.Cache

	// Builds counts the lists created.
	Builds int
}

// NewLists creates a cache holding up to max slots; zero means no limit.
func NewLists(max int) *Lists {
	c := lru.New(max)
	c.OnEvicted = func(key lru.Key, value interface{}) {
		e := value.(*listEntry)
		e.dev.DeleteList(e.id)
		logrus.WithField("slot", key).Debug("released display list")
	}
	return &Lists{cache: c}
}

// Draw replays the list of a slot, building it from build when missing or
// when its recipe changed.
func (l *Lists) Draw(dev gpu.Device, slot lru.Key, recipe any, build func() gpu.Batch) error {
	if v, ok := l.cache.Get(slot); ok {
		e := v.(*listEntry)
		if e.recipe == recipe && e.dev == dev {
			return dev.DrawList(e.id)
		}
		l.cache.Remove(slot)
	}
	batch := build()
	if batch.Empty() {
		return nil
	}
	id, err := dev.CreateList(batch)
	if err != nil {
		return err
	}
	l.Builds++
	l.cache.Add(slot, &listEntry{dev: dev, id: id, recipe: recipe})
	return dev.DrawList(id)
}

// Invalidate frees the list of a slot.
func (l *Lists) Invalidate(slot lru.Key) {
	l.cache.Remove(slot)
}

// Clear frees every list.
func (l *Lists) Clear() {
	l.cache.Clear()
}

// Len returns the number of live lists.
func (l *Lists) Len() int { return l.cache.Len() }
