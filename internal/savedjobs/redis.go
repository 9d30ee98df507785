package savedjobs

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var toggleScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 1 then
	redis.call("SREM", KEYS[1], ARGV[1])
	return 0
end
redis.call("SADD", KEYS[1], ARGV[1])
return 1
`)

// RedisStore keeps each visitor's saved set in a Redis set.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func key(visitorID string) string {
	return "saved:" + visitorID
}

func (s *RedisStore) Saved(ctx context.Context, visitorID string) (Set, error) {
	members, err := s.rdb.SMembers(ctx, key(visitorID)).Result()
	if err != nil {
		return Set{}, errors.Wrap(err, "redis smembers")
	}
	set := make(Set, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *RedisStore) IsSaved(ctx context.Context, visitorID string, id int) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, key(visitorID), strconv.Itoa(id)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis sismember")
	}
	return ok, nil
}

func (s *RedisStore) Toggle(ctx context.Context, visitorID string, id int) (bool, error) {
	n, err := toggleScript.Run(ctx, s.rdb, []string{key(visitorID)}, strconv.Itoa(id)).Int()
	if err != nil {
		return false, errors.Wrap(err, "redis toggle")
	}
	return n == 1, nil
}

func (s *RedisStore) Put(ctx context.Context, visitorID string, id int, saved bool) error {
	if saved {
		return errors.Wrap(s.rdb.SAdd(ctx, key(visitorID), strconv.Itoa(id)).Err(), "redis sadd")
	}
	return errors.Wrap(s.rdb.SRem(ctx, key(visitorID), strconv.Itoa(id)).Err(), "redis srem")
}
