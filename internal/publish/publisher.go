package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/config"
	"github.com/wonny/consolidator/pkg/httputil"
	"github.com/wonny/consolidator/pkg/logger"
	"github.com/wonny/consolidator/pkg/redis"
)

// Publisher pushes a PublishSet to one sink with bounded concurrency
type Publisher struct {
	sink        contracts.ArtifactSink
	concurrency int
	logger      *logger.Logger
}

// Failure is one artifact that could not be published
type Failure struct {
	RemoteName string `json:"remote_name"`
	Error      string `json:"error"`
}

// Summary describes a finished publish pass
type Summary struct {
	Sink     string        `json:"sink"`
	Uploaded []string      `json:"uploaded"`
	Failed   []Failure     `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// NewPublisher creates a publisher. concurrency < 1 is treated as 1.
func NewPublisher(sink contracts.ArtifactSink, concurrency int, log *logger.Logger) *Publisher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Publisher{
		sink:        sink,
		concurrency: concurrency,
		logger:      log.WithComponent("publisher"),
	}
}

// Publish uploads every artifact in set. One failed upload does not stop the
// others; the returned error reports the failure count.
func (p *Publisher) Publish(ctx context.Context, set contracts.PublishSet) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		Sink:     p.sink.Name(),
		Uploaded: []string{},
		Failed:   []Failure{},
	}

	var mu sync.Mutex
	uploaded := make(map[string]bool, len(set))

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for _, a := range set {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				p.recordFailure(&mu, summary, a.RemoteName, err)
				return nil
			}
			if err := p.sink.Upload(ctx, a.LocalPath, a.RemoteName); err != nil {
				p.logger.WithError(err).WithField("remote", a.RemoteName).Error("Artifact publish failed")
				p.recordFailure(&mu, summary, a.RemoteName, err)
				return nil
			}
			mu.Lock()
			uploaded[a.RemoteName] = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// 업로드 순서와 무관하게 생산 순서 유지
	for _, name := range set.RemoteNames() {
		if uploaded[name] {
			summary.Uploaded = append(summary.Uploaded, name)
		}
	}
	summary.Duration = time.Since(start)

	p.logger.WithFields(map[string]interface{}{
		"sink":     summary.Sink,
		"uploaded": len(summary.Uploaded),
		"failed":   len(summary.Failed),
		"duration": summary.Duration,
	}).Info("Publish finished")

	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("publish to %s: %d of %d artifacts failed", summary.Sink, len(summary.Failed), len(set))
	}
	return summary, nil
}

func (p *Publisher) recordFailure(mu *sync.Mutex, s *Summary, name string, err error) {
	mu.Lock()
	defer mu.Unlock()
	s.Failed = append(s.Failed, Failure{RemoteName: name, Error: err.Error()})
}

// SinkFromConfig builds the sink selected by PUBLISH_MODE.
// Returns (nil, nil) when publishing is off, including hf mode without a token.
func SinkFromConfig(cfg *config.Config, rdb *redis.Client, log *logger.Logger) (contracts.ArtifactSink, error) {
	switch cfg.Publish.Mode {
	case config.PublishNone, "":
		return nil, nil

	case config.PublishLocal:
		return NewLocalSink(cfg.Publish.Dir, log), nil

	case config.PublishHF:
		if cfg.Publish.HFToken == "" {
			log.Warn("HF_TOKEN not set, skipping hub upload")
			return nil, nil
		}
		client := httputil.New(cfg, log).
			WithBearerToken(cfg.Publish.HFToken).
			WithRetry(3, 2*time.Second)
		if rdb.Enabled() {
			limiter := redis.NewRateLimiter(rdb, "consolidator")
			client.WithRateLimiter(limiter, redis.UploadRateLimit(cfg.Publish.RatePerSecond))
		} else {
			client.WithLocalRateLimit(cfg.Publish.RatePerSecond)
		}
		return NewHubSink(client, HubOptions{
			Endpoint: cfg.Publish.HFEndpoint,
			Repo:     cfg.Publish.HFRepo,
		}, log)

	default:
		return nil, fmt.Errorf("unknown publish mode %q", cfg.Publish.Mode)
	}
}
