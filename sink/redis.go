package sink

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/honeycombio/spanbeat/config"
)

var _ LogSink = (*RedisSink)(nil)

// RedisSink appends each line to a Redis list so snapshots outlive the
// process. When MaxLength is set the list is trimmed to its newest entries
// in the same transaction.
type RedisSink struct {
	client    *redis.Client
	key       string
	maxLength int64
	timeout   time.Duration
}

func NewRedisSink(rc config.RedisSinkConfig) (*RedisSink, error) {
	if rc.Host == "" {
		return nil, errors.New("redis sink requires a host")
	}
	opts := &redis.Options{
		Addr:     rc.Host,
		Username: rc.Username,
		Password: rc.Password,
		DB:       rc.Database,
	}
	if rc.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	timeout := time.Duration(rc.Timeout)
	if timeout <= 0 {
		timeout = time.Second
	}
	return &RedisSink{
		client:    redis.NewClient(opts),
		key:       rc.Key,
		maxLength: rc.MaxLength,
		timeout:   timeout,
	}, nil
}

func (s *RedisSink) Write(line string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, line)
		if s.maxLength > 0 {
			pipe.LTrim(ctx, s.key, -s.maxLength, -1)
		}
		return nil
	})
	return errors.Wrapf(err, "pushing snapshot to redis list %s", s.key)
}

// Ping checks that the server is reachable.
func (s *RedisSink) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx).Err(), "pinging redis")
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
