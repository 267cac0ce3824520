package calendarsvc

import (
	"context"
	"log"
	"sync"

	"github.com/trezcool/balozi/core"
)

// consoleService logs calendar pushes instead of calling an external
// calendar API. DEV default; the sync stays one-way either way.
type consoleService struct{}

var _ core.CalendarService = (*consoleService)(nil)

func NewConsoleService() *consoleService {
	return &consoleService{}
}

func (svc consoleService) PushEntry(ctx context.Context, entry core.CalendarEntry) error {
	log.Printf("calendar push -> uid=%s title=%q starts=%s ends=%s", entry.UID, entry.Title, entry.StartsAt, entry.EndsAt)
	return nil
}

func (svc consoleService) RemoveEntry(ctx context.Context, uid string) error {
	log.Printf("calendar remove -> uid=%s", uid)
	return nil
}

// mockService records entries for assertion in tests.
type mockService struct {
	mutex   sync.Mutex
	entries map[string]core.CalendarEntry
}

var _ core.CalendarService = (*mockService)(nil)

func NewMockService() *mockService {
	return &mockService{entries: make(map[string]core.CalendarEntry)}
}

func (svc *mockService) PushEntry(ctx context.Context, entry core.CalendarEntry) error {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	svc.entries[entry.UID] = entry
	return nil
}

func (svc *mockService) RemoveEntry(ctx context.Context, uid string) error {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	delete(svc.entries, uid)
	return nil
}

func (svc *mockService) Entry(uid string) (core.CalendarEntry, bool) {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	entry, ok := svc.entries[uid]
	return entry, ok
}
