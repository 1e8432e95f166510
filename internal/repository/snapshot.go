package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

var ErrSnapshotNotFound = errors.New("room snapshot not found")

const snapshotKeyPrefix = "room:"

// saveNewer writes ARGV[1] unless the stored snapshot already has a higher version.
// ARGV[2] is the new version, ARGV[3] the ttl in milliseconds (0 keeps the key).
var saveNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local stored = cjson.decode(current).version
	if stored and tonumber(stored) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// SnapshotRepository keeps the latest observable state of each room.
// Save ignores a snapshot older than the stored one.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *entity.RoomSnapshot) error
	GetByID(ctx context.Context, id string) (*entity.RoomSnapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbSnapshot struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotRepository - redis backed snapshots. A zero ttl keeps keys forever.
func NewSnapshotRepository(client *redis.Client, ttl time.Duration) SnapshotRepository {
	return &dbSnapshot{
		client: client,
		ttl:    ttl,
	}
}

func (that *dbSnapshot) Save(ctx context.Context, snapshot *entity.RoomSnapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal snapshot: %w", err)
	}

	keys := []string{snapshotKeyPrefix + snapshot.ID}
	err = saveNewer.Run(ctx, that.client, keys, snapshotJSON, snapshot.Version, that.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	return nil
}

func (that *dbSnapshot) GetByID(ctx context.Context, id string) (*entity.RoomSnapshot, error) {
	response, err := that.client.Get(ctx, snapshotKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot by id: %w", err)
	}

	var snapshot entity.RoomSnapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

func (that *dbSnapshot) DeleteByID(ctx context.Context, id string) error {
	deleted, err := that.client.Del(ctx, snapshotKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete snapshot by id: %w", err)
	}

	if deleted == 0 {
		return ErrSnapshotNotFound
	}

	return nil
}

type inMemorySnapshot struct {
	mu        sync.RWMutex
	snapshots map[string]entity.RoomSnapshot
}

// NewInMemorySnapshotRepository - used when redis is disabled.
func NewInMemorySnapshotRepository() SnapshotRepository {
	return &inMemorySnapshot{snapshots: make(map[string]entity.RoomSnapshot)}
}

func (that *inMemorySnapshot) Save(_ context.Context, snapshot *entity.RoomSnapshot) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if stored, ok := that.snapshots[snapshot.ID]; ok && stored.Version > snapshot.Version {
		return nil
	}

	that.snapshots[snapshot.ID] = *snapshot

	return nil
}

func (that *inMemorySnapshot) GetByID(_ context.Context, id string) (*entity.RoomSnapshot, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	snapshot, ok := that.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}

	return &snapshot, nil
}

func (that *inMemorySnapshot) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.snapshots[id]; !ok {
		return ErrSnapshotNotFound
	}
	delete(that.snapshots, id)

	return nil
}
