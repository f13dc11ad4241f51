package alerts

import (
	"context"

	"github.com/redis/go-redis/v9"

	"storeadmin/api/internal/models"
)

const (
	DefaultStream = "security:alerts"
	streamMaxLen  = 10000
)

type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, entry models.SecurityLog) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: fromEntry(entry),
	}).Err()
}
