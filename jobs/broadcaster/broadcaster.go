package broadcaster

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"tiergc/infra/journal"
	"tiergc/infra/kafka"
)

const defaultInterval = 250 * time.Millisecond

// Broadcaster drains NEW journal entries to a publisher.
type Broadcaster struct {
	journal    *journal.Journal
	pub        kafka.Publisher
	interval   time.Duration
	maxRetries int
	log        *log.Logger
}

type Config struct {
	Interval time.Duration
	// MaxRetries is the number of failed publishes after which an
	// entry is parked as FAILED. Zero retries forever.
	MaxRetries int
	Logger     *log.Logger
}

// Result summarises one drain pass.
type Result struct {
	Published int
	Retried   int
	Failed    int
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(j *journal.Journal, pub kafka.Publisher, cfg Config) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Broadcaster{
		journal:    j,
		pub:        pub,
		interval:   cfg.Interval,
		maxRetries: cfg.MaxRetries,
		log:        cfg.Logger,
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Start runs the loop in a goroutine.
func (b *Broadcaster) Start(ctx context.Context) {
	go func() {
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			b.log.Printf("[broadcaster] stopped: %v", err)
		}
	}()
}

// Run requeues entries left SENT by a previous process, then drains
// on every tick until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	if n, err := b.Recover(); err != nil {
		return err
	} else if n > 0 {
		b.log.Printf("[broadcaster] requeued %d in-flight entries", n)
	}
	b.log.Println("[broadcaster] started")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := b.DrainOnce(ctx)
			if err != nil {
				b.log.Printf("[broadcaster] drain: %v", err)
				continue
			}
			if res.Published > 0 {
				if _, err := b.journal.PruneAcked(); err != nil {
					b.log.Printf("[broadcaster] prune: %v", err)
				}
			}
		}
	}
}

// ------------------------------------------------
// DRAIN LOGIC
// ------------------------------------------------

// DrainOnce publishes every NEW entry once: SENT, then publish, then
// ACKED. A failed publish goes back to NEW, or to FAILED once the
// retry budget is spent.
func (b *Broadcaster) DrainOnce(ctx context.Context) (Result, error) {
	var res Result

	pending, err := b.collect(journal.StateNew)
	if err != nil {
		return res, err
	}

	for _, e := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := b.journal.MarkSent(e.Seq); err != nil {
			return res, err
		}

		key := []byte(strconv.FormatUint(e.Seq, 10))
		if err := b.pub.Publish(ctx, key, e.Payload); err != nil {
			if b.maxRetries > 0 && int(e.Retries)+1 >= b.maxRetries {
				if err := b.journal.MarkFailed(e.Seq); err != nil {
					return res, err
				}
				b.log.Printf("[broadcaster] entry %d failed after %d attempts: %v", e.Seq, e.Retries+1, err)
				res.Failed++
				continue
			}
			if err := b.journal.MarkRetry(e.Seq); err != nil {
				return res, err
			}
			res.Retried++
			continue
		}

		if err := b.journal.MarkAcked(e.Seq); err != nil {
			return res, err
		}
		res.Published++
	}
	return res, nil
}

// Recover moves SENT entries back to NEW.
func (b *Broadcaster) Recover() (int, error) {
	sent, err := b.collect(journal.StateSent)
	if err != nil {
		return 0, err
	}
	for _, e := range sent {
		if err := b.journal.MarkRetry(e.Seq); err != nil {
			return 0, err
		}
	}
	return len(sent), nil
}

func (b *Broadcaster) collect(state journal.State) ([]journal.Entry, error) {
	var out []journal.Entry
	err := b.journal.ScanByState(state, func(e journal.Entry) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %v: %w", state, err)
	}
	return out, nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
