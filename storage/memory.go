package storage

import (
	"sort"
	"sync"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	Announcements []*Announcement

	mutex sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Announcements: []*Announcement{},
	}
}

func (s *MemoryStorage) WriteAnnouncement(a *Announcement) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cp := *a
	s.Announcements = append(s.Announcements, &cp)
	return nil
}

func (s *MemoryStorage) ListAnnouncements(filter ListAnnouncementsFilter) ([]*Announcement, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := []*Announcement{}
	for _, a := range s.Announcements {
		if filter.matches(a) {
			cp := *a
			result = append(result, &cp)
		}
	}

	// Stable, so ties stay in reverse insertion order
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AnnouncedAt.After(result[j].AnnouncedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
