package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// UpdateBufferSize is how many updates a slow listener may fall behind
// before updates to it are dropped.
const UpdateBufferSize = 255

type InmemoryStore struct {
	mu          sync.RWMutex
	values      []byte
	updateChans []chan *Update
	closed      bool

	log *zap.Logger
}

func NewInmemoryStore(log *zap.Logger) *InmemoryStore {
	if log == nil {
		log = zap.NewNop()
	}

	return &InmemoryStore{
		values:      []byte("{}"),
		updateChans: make([]chan *Update, 0),
		log:         log,
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}

	i.closed = true
	for _, updateChan := range i.updateChans {
		close(updateChan)
	}

	i.updateChans = nil
	return nil
}

func (i *InmemoryStore) Put(ctx context.Context, id string, status interface{}) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}

	values, err := sjson.SetBytes(i.values, escapeKey(id), status)
	if err != nil {
		return fmt.Errorf("Failed to store session '%s': %w", id, err)
	}

	i.values = values
	i.publish(ctx, &Update{
		ID:    id,
		Value: []byte(gjson.GetBytes(i.values, escapeKey(id)).Raw),
	})

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	result := gjson.GetBytes(i.values, escapeKey(id))
	if !result.Exists() {
		return nil, fmt.Errorf("'%s': %w", id, ErrNotFound)
	}

	return []byte(result.Raw), nil
}

func (i *InmemoryStore) Delete(ctx context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}

	if !gjson.GetBytes(i.values, escapeKey(id)).Exists() {
		return fmt.Errorf("'%s': %w", id, ErrNotFound)
	}

	values, err := sjson.DeleteBytes(i.values, escapeKey(id))
	if err != nil {
		return fmt.Errorf("Failed to delete session '%s': %w", id, err)
	}

	i.values = values
	i.publish(ctx, &Update{ID: id})

	return nil
}

func (i *InmemoryStore) Snapshot() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return append([]byte(nil), i.values...), nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, UpdateBufferSize)
	if i.closed {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)
	return updateChan
}

// publish must be called with mu held. A listener whose buffer is full
// misses the update rather than blocking the session that caused it.
func (i *InmemoryStore) publish(ctx context.Context, update *Update) {
	for _, updateChan := range i.updateChans {
		select {
		case updateChan <- update:
		case <-ctx.Done():
			return
		default:
			i.log.Warn("Dropping session update for slow listener", zap.String("session", update.ID))
		}
	}
}

// escapeKey makes id usable as a single gjson/sjson path component.
func escapeKey(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}

var _ Store = (*InmemoryStore)(nil)
