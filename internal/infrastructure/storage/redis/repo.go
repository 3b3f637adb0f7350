package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

// Publisher broadcasts published snapshots to other processes. Redis is never
// read back; the controllers own the truth.
type Publisher struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	keyLatest    string // prefix + ":latest", one hash per basket under it
	stream       string
	streamMaxLen int64
	channel      string
}

// LatestQuote is the hash value stored per ticker.
type LatestQuote struct {
	Ticker        string   `json:"ticker"`
	Price         *float64 `json:"price"`
	ChangePercent float64  `json:"changePercent"`
	IsLive        bool     `json:"isLive"`
	AsOf          int64    `json:"asOfMs"`
}

// SnapshotEvent is the msgpack payload on the snapshot stream.
type SnapshotEvent struct {
	BasketID   string                      `msgpack:"basket_id"`
	Generation uint64                      `msgpack:"generation"`
	Sequence   uint64                      `msgpack:"sequence"`
	MarketOpen bool                        `msgpack:"market_open"`
	AsOfMs     int64                       `msgpack:"as_of_ms"`
	Quotes     map[string]model.PriceQuote `msgpack:"quotes"`
	Stale      []string                    `msgpack:"stale"`
}

// Notice is the small JSON message on the pub/sub channel.
type Notice struct {
	BasketID string   `json:"basketId"`
	Sequence uint64   `json:"sequence"`
	AsOfMs   int64    `json:"asOfMs"`
	Stale    []string `json:"stale,omitempty"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, stream string, streamMaxLen int64, channel string) *Publisher {
	if strings.TrimSpace(stream) == "" {
		stream = prefix + ":snapshots"
	}
	if strings.TrimSpace(channel) == "" {
		channel = prefix + ":snapshots:pub"
	}
	return &Publisher{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		keyLatest:    prefix + ":latest",
		stream:       stream,
		streamMaxLen: streamMaxLen,
		channel:      channel,
	}
}

func (p *Publisher) PublishSnapshot(ctx context.Context, basketID string, snap *model.PriceSnapshot) error {
	if snap == nil {
		return nil
	}

	// 1) Hash: <prefix>:latest:<basket>, field = ticker -> json，只写有价格的
	key := p.LatestKey(basketID)
	pipe := p.rdb.Pipeline()
	n := 0
	for _, t := range snap.Tickers {
		q, ok := snap.Quote(t)
		if !ok || !q.Priced() {
			continue
		}
		b, _ := json.Marshal(LatestQuote{Ticker: t, Price: q.Price, ChangePercent: q.ChangePercent, IsLive: q.IsLive, AsOf: snap.AsOf.UnixMilli()})
		pipe.HSet(ctx, key, t, string(b))
		n++
	}
	if n > 0 {
		if p.ttl > 0 {
			pipe.Expire(ctx, key, p.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}

	// 2) Stream: XADD <stream> MAXLEN ~ n * basket seq payload
	payload, err := EncodeSnapshot(basketID, snap)
	if err != nil {
		return err
	}
	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.streamMaxLen,
		Approx: p.streamMaxLen > 0,
		Values: map[string]any{
			"basket":  basketID,
			"seq":     snap.Sequence,
			"ts_ms":   snap.AsOf.UnixMilli(),
			"payload": payload,
		},
	}).Err(); err != nil {
		return err
	}

	// 3) PubSub: PUBLISH <channel> json
	msg, _ := json.Marshal(Notice{BasketID: basketID, Sequence: snap.Sequence, AsOfMs: snap.AsOf.UnixMilli(), Stale: snap.Stale()})
	return p.rdb.Publish(ctx, p.channel, msg).Err()
}

// LatestKey is the latest-quote hash of one basket. Baskets sharing a ticker
// never overwrite each other.
func (p *Publisher) LatestKey(basketID string) string {
	return p.keyLatest + ":" + basketID
}

func EncodeSnapshot(basketID string, snap *model.PriceSnapshot) ([]byte, error) {
	return msgpack.Marshal(SnapshotEvent{
		BasketID:   basketID,
		Generation: snap.Generation,
		Sequence:   snap.Sequence,
		MarketOpen: snap.MarketOpen,
		AsOfMs:     snap.AsOf.UnixMilli(),
		Quotes:     snap.Quotes,
		Stale:      snap.Stale(),
	})
}

func DecodeSnapshot(b []byte) (*SnapshotEvent, error) {
	var ev SnapshotEvent
	if err := msgpack.Unmarshal(b, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

var _ port.SnapshotPublisher = (*Publisher)(nil)
