package noti

import (
	"context"
	"crudconsole/logger"
	"encoding/json"

	"github.com/go-redis/redis/v8"
)

const (
	ErrRedisNoURLFound = "redis_no_url_found"
	ErrRedisFailedURL  = "redis_failed_url"

	DefaultRedisChannel = "console:notifications"
)

// redisNotifier publishes every toast on a redis channel, args are the
// redis URL and an optional channel name.
type redisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(args []string) (Notifier, error) {
	if len(args) < 1 {
		return nil, NewNotiError(ErrRedisNoURLFound, "Build a redis notifier failed. No URL found in arguments")
	}
	options, err := redis.ParseURL(args[0])
	if err != nil {
		return nil, NewNotiError(ErrRedisFailedURL, "Build a redis notifier failed. Specified URL '%s' is bad: %s", args[0], err.Error())
	}
	channel := DefaultRedisChannel
	if len(args) > 1 && args[1] != "" {
		channel = args[1]
	}
	return &redisNotifier{client: redis.NewClient(options), channel: channel}, nil
}

func (rn *redisNotifier) start(in chan *Event) {
	defer rn.client.Close()
	for event := range in {
		body, _ := json.Marshal(event.Obj())
		if err := rn.client.Publish(context.Background(), rn.channel, body).Err(); err != nil {
			logger.Error("Can't publish notification to '%s' channel: %s", rn.channel, err.Error())
		}
	}
}

func (rn *redisNotifier) NewNotification() chan *Event {
	in := make(chan *Event, 100)
	go rn.start(in)
	return in
}
