package auth

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdentityChannel is the pub/sub channel identity events travel on.
const IdentityChannel = "identity_changed"

type Notifier interface {
	Publish(ctx context.Context, event IdentityEvent) error
	Subscribe(fn func(IdentityEvent)) (cancel func())
}

// LocalNotifier fans events out to in-process subscribers.
type LocalNotifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(IdentityEvent)
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[int]func(IdentityEvent))}
}

func (n *LocalNotifier) Publish(ctx context.Context, event IdentityEvent) error {
	n.dispatch(event)
	return nil
}

func (n *LocalNotifier) Subscribe(fn func(IdentityEvent)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *LocalNotifier) dispatch(event IdentityEvent) {
	n.mu.RLock()
	fns := make([]func(IdentityEvent), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}

// RedisNotifier shares identity events between service instances.
// Events published here reach local subscribers only through the redis round trip.
type RedisNotifier struct {
	rdb    *redis.Client
	local  *LocalNotifier
	logger *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{rdb: rdb, local: NewLocalNotifier(), logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, event IdentityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, IdentityChannel, payload).Err()
}

func (n *RedisNotifier) Subscribe(fn func(IdentityEvent)) func() {
	return n.local.Subscribe(fn)
}

// Listen relays redis messages to local subscribers until ctx is done.
// ready is closed once the subscription is confirmed.
func (n *RedisNotifier) Listen(ctx context.Context, ready chan<- struct{}) error {
	sub := n.rdb.Subscribe(ctx, IdentityChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	n.logger.Info("Subscribed to identity events", zap.String("channel", IdentityChannel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event IdentityEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				n.logger.Warn("Failed to unmarshal identity event", zap.Error(err))
				continue
			}
			n.local.dispatch(event)
		}
	}
}
