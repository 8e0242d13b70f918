package chain

import (
	"sync"

	"github.com/TEENet-io/token-bridge/agreement"
)

// PublisherService is a concurrent-safe service that
// could "Notify" channels of observers.
// Please "Register" observers via RegisterXXXObserver before Notify.
type PublisherService struct {
	EventObservers    []chan agreement.Event
	ExecutedObservers []chan *agreement.TransferExecutedEvent
	BlockObservers    []chan uint64
	mu                sync.Mutex
}

func NewPublisherService() *PublisherService {
	return &PublisherService{
		EventObservers:    make([]chan agreement.Event, 0),
		ExecutedObservers: make([]chan *agreement.TransferExecutedEvent, 0),
		BlockObservers:    make([]chan uint64, 0),
	}
}

// RegisterEventObserver registers an observer receiving every committed event.
func (m *PublisherService) RegisterEventObserver(observer chan agreement.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EventObservers = append(m.EventObservers, observer)
}

// RegisterExecutedObserver registers an observer for executed transfers only.
func (m *PublisherService) RegisterExecutedObserver(observer chan *agreement.TransferExecutedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExecutedObservers = append(m.ExecutedObservers, observer)
}

// RegisterBlockObserver registers an observer receiving the height of every
// mined block.
func (m *PublisherService) RegisterBlockObserver(observer chan uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BlockObservers = append(m.BlockObservers, observer)
}

func (m *PublisherService) NotifyEvent(ev agreement.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, observer := range m.EventObservers {
		select {
		case observer <- ev:
		default:
			// Handle the case where the observer's channel is full
			go func(obs chan agreement.Event) {
				obs <- ev
			}(observer)
		}
	}

	executed, ok := ev.(*agreement.TransferExecutedEvent)
	if !ok {
		return
	}
	for _, observer := range m.ExecutedObservers {
		select {
		case observer <- executed:
		default:
			go func(obs chan *agreement.TransferExecutedEvent) {
				obs <- executed
			}(observer)
		}
	}
}

func (m *PublisherService) NotifyBlock(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, observer := range m.BlockObservers {
		select {
		case observer <- height:
		default:
			// a late block notification is useless, drop it
		}
	}
}
