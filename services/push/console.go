package pushsvc

import (
	"log"
	"sync"

	"github.com/trezcool/balozi/core"
)

// consoleService logs push notifications instead of delivering them. DEV default.
type consoleService struct {
	disableOutput bool
}

var _ core.PushService = (*consoleService)(nil)

func NewConsoleService() *consoleService {
	return &consoleService{}
}

func (svc consoleService) SendMessages(messages ...*core.PushMessage) {
	for _, msg := range messages {
		if !svc.disableOutput {
			log.Printf("push -> user=%s title=%q body=%q data=%v", msg.UserID, msg.Title, msg.Body, msg.Data)
		}
	}
}

// mockService records messages for assertion in tests.
type mockService struct {
	mutex sync.Mutex
	sent  []core.PushMessage
}

var _ core.PushService = (*mockService)(nil)

func NewMockService() *mockService {
	return &mockService{}
}

func (svc *mockService) SendMessages(messages ...*core.PushMessage) {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	for _, msg := range messages {
		svc.sent = append(svc.sent, *msg)
	}
}

func (svc *mockService) Sent() []core.PushMessage {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	sent := make([]core.PushMessage, len(svc.sent))
	copy(sent, svc.sent)
	return sent
}
