package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/internship-service/internal/model"
)

const (
	redisChannelsKey  = "internships:channels"
	redisSubKeyPrefix = "internships:sub:"
)

// registerScript creates the subscription hash only if it does not exist.
// KEYS[1] sub hash, KEYS[2] channel set; ARGV guild_id, created_at, channel.
var registerScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'guild_id', ARGV[1], 'last_update', '', 'created_at', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
return 1
`)

// advanceScript is a compare-and-set on the fixed-width UTC watermark.
// Returns -1 for an unknown channel.
var advanceScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local cur = redis.call('HGET', KEYS[1], 'last_update')
if (not cur) or cur == '' or cur < ARGV[1] then
	redis.call('HSET', KEYS[1], 'last_update', ARGV[1])
	return 1
end
return 0
`)

// RedisStore keeps one hash per channel plus a set of channel ids.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a store over rdb and takes ownership of it.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func subKey(channelID string) string { return redisSubKeyPrefix + channelID }

func (s *RedisStore) Register(ctx context.Context, channelID, guildID string) (model.Subscription, bool, error) {
	created, err := registerScript.Run(ctx, s.rdb,
		[]string{subKey(channelID), redisChannelsKey},
		guildID, formatTime(time.Now()), channelID,
	).Int()
	if err != nil {
		return model.Subscription{}, false, fmt.Errorf("register %s: %w", channelID, err)
	}

	sub, err := s.Get(ctx, channelID)
	if err != nil {
		return model.Subscription{}, false, err
	}
	return sub, created == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, channelID string) (model.Subscription, error) {
	fields, err := s.rdb.HGetAll(ctx, subKey(channelID)).Result()
	if err != nil {
		return model.Subscription{}, fmt.Errorf("get %s: %w", channelID, err)
	}
	if len(fields) == 0 {
		return model.Subscription{}, ErrNotFound
	}
	return decodeRedis(channelID, fields)
}

func (s *RedisStore) List(ctx context.Context) ([]model.Subscription, error) {
	ids, err := s.rdb.SMembers(ctx, redisChannelsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, subKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	subs := make([]model.Subscription, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue // set member without a hash
		}
		sub, err := decodeRedis(id, fields)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *RedisStore) Advance(ctx context.Context, channelID string, at time.Time) error {
	res, err := advanceScript.Run(ctx, s.rdb, []string{subKey(channelID)}, formatTime(at)).Int()
	if err != nil {
		return fmt.Errorf("advance %s: %w", channelID, err)
	}
	if res < 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func decodeRedis(channelID string, fields map[string]string) (model.Subscription, error) {
	sub := model.Subscription{ChannelID: channelID, GuildID: fields["guild_id"]}

	var err error
	if sub.LastUpdate, err = parseTime(fields["last_update"]); err != nil {
		return model.Subscription{}, fmt.Errorf("decode %s last_update: %w", channelID, err)
	}
	created, err := parseTime(fields["created_at"])
	if err != nil {
		return model.Subscription{}, fmt.Errorf("decode %s created_at: %w", channelID, err)
	}
	if created != nil {
		sub.CreatedAt = *created
	}
	return sub, nil
}
