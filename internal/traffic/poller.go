package traffic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/router"
)

// DefaultInterval is the poll period when none is configured
const DefaultInterval = 5 * time.Second

// InterfaceSource lists router interfaces with their counters
type InterfaceSource interface {
	GetInterfaces(ctx context.Context) ([]router.Interface, error)
}

// Publisher receives every reading
type Publisher interface {
	PublishTraffic(ctx context.Context, event *models.TrafficEvent) error
}

// PollerConfig selects the measured interface
type PollerConfig struct {
	// Interface pins the measured interface; empty selects the WAN
	Interface string
	WANMarker string
	Interval  time.Duration
}

// Poller reads the uplink counters and turns them into rates
type Poller struct {
	source    InterfaceSource
	estimator *Estimator
	publisher Publisher
	metrics   *Metrics
	cfg       PollerConfig

	mu   sync.RWMutex
	last *models.TrafficEvent
}

// NewPoller creates a poller. publisher and metrics may be nil.
func NewPoller(source InterfaceSource, estimator *Estimator, publisher Publisher, metrics *Metrics, cfg PollerConfig) *Poller {
	if estimator == nil {
		estimator = NewEstimator()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		source:    source,
		estimator: estimator,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Poll takes one reading
func (p *Poller) Poll(ctx context.Context) (*models.TrafficEvent, error) {
	start := time.Now()
	event, err := p.poll(ctx)
	p.metrics.poll(time.Since(start).Seconds(), err)
	return event, err
}

func (p *Poller) poll(ctx context.Context) (*models.TrafficEvent, error) {
	ifaces, err := p.source.GetInterfaces(ctx)
	if err != nil {
		return nil, err
	}

	iface, err := p.pick(ifaces)
	if err != nil {
		return nil, err
	}

	rate := p.estimator.Observe(iface.Name, iface.RxBytes, iface.TxBytes)
	sample, _ := p.estimator.Last(iface.Name)

	event := &models.TrafficEvent{
		Interface: iface.Name,
		Download:  rate.Download,
		Upload:    rate.Upload,
		RxBytes:   iface.RxBytes,
		TxBytes:   iface.TxBytes,
		Timestamp: sample.Timestamp,
	}

	p.mu.Lock()
	p.last = event
	p.mu.Unlock()

	p.metrics.observe(iface.Name, rate, iface.RxBytes, iface.TxBytes)

	if p.publisher != nil {
		if err := p.publisher.PublishTraffic(ctx, event); err != nil {
			log.Warn().Err(err).Str("interface", iface.Name).Msg("Failed to publish traffic reading")
		}
	}

	log.Debug().
		Str("interface", iface.Name).
		Float64("download_mbps", event.Download).
		Float64("upload_mbps", event.Upload).
		Msg("Traffic polled")

	return event, nil
}

func (p *Poller) pick(ifaces []router.Interface) (*router.Interface, error) {
	if p.cfg.Interface != "" {
		if iface := router.FindInterface(ifaces, p.cfg.Interface); iface != nil {
			return iface, nil
		}
		return nil, fmt.Errorf("interface %q: %w", p.cfg.Interface, router.ErrNotFound)
	}
	if iface := router.SelectWAN(ifaces, p.cfg.WANMarker); iface != nil {
		return iface, nil
	}
	return nil, fmt.Errorf("no interfaces: %w", router.ErrNotFound)
}

// Last returns the most recent reading, or nil before the first poll
func (p *Poller) Last() *models.TrafficEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run polls every interval until ctx is done
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.cfg.Interval).Str("interface", p.cfg.Interface).Msg("Traffic poller started")

	for {
		if _, err := p.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			if errors.Is(err, router.ErrNotConfigured) {
				log.Debug().Msg("Router not configured, skipping traffic poll")
			} else {
				log.Warn().Err(err).Msg("Traffic poll failed")
			}
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Traffic poller stopped")
			return
		case <-ticker.C:
		}
	}
}
