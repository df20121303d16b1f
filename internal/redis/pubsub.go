package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ShowsPubSub announces that the seat availability of a show changed, so
// subscribers (seat map UIs, edge caches) can refresh.
type ShowsPubSub struct {
	rdb     *redis.Client
	channel string
	now     func() time.Time
}

func NewShowsPubSub(rdb *redis.Client) *ShowsPubSub {
	return &ShowsPubSub{
		rdb:     rdb,
		channel: ChannelShowsChanged(),
		now:     time.Now,
	}
}

type showChangedMsg struct {
	Type   string `json:"type"`
	ShowID int64  `json:"show_id"`
	TsUnix int64  `json:"ts_unix"`
}

func (p *ShowsPubSub) PublishShowChanged(ctx context.Context, showID int64) error {
	b, err := json.Marshal(showChangedMsg{
		Type:   "show_changed",
		ShowID: showID,
		TsUnix: p.now().Unix(),
	})
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}
