package telemetry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/model"
)

// AlreadySimulatingError reports a start request for a device that already
// has a running heartbeat simulator.
type AlreadySimulatingError struct {
	DeviceKey string
}

func (e *AlreadySimulatingError) Error() string {
	return fmt.Sprintf("device %s is already being simulated", e.DeviceKey)
}

// Simulator drives synthetic heartbeats, one goroutine per simulated device.
// The RNG is injected so tests can assert exact output sequences.
type Simulator struct {
	adapter  *Adapter
	logger   *zap.Logger
	interval time.Duration
	profiles map[string]Profile
	newRNG   func(deviceKey string) *rand.Rand

	mu      sync.Mutex
	running map[string]chan struct{}
}

// NewSimulator creates a heartbeat simulator. newRNG supplies the random
// source per device; a nil factory falls back to a time-seeded source.
func NewSimulator(adapter *Adapter, profiles map[string]Profile, interval time.Duration, newRNG func(deviceKey string) *rand.Rand, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if newRNG == nil {
		newRNG = func(string) *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- synthetic telemetry
		}
	}
	if profiles == nil {
		profiles = map[string]Profile{}
	}
	return &Simulator{
		adapter:  adapter,
		logger:   logger,
		interval: interval,
		profiles: profiles,
		newRNG:   newRNG,
		running:  make(map[string]chan struct{}),
	}
}

// Start launches the heartbeat loop for a device. Starting a device that is
// already simulated fails with *AlreadySimulatingError.
func (s *Simulator) Start(ctx context.Context, deviceKey string) error {
	s.mu.Lock()
	if _, ok := s.running[deviceKey]; ok {
		s.mu.Unlock()
		return &AlreadySimulatingError{DeviceKey: deviceKey}
	}
	stop := make(chan struct{})
	s.running[deviceKey] = stop
	s.mu.Unlock()

	profile := s.profileFor(deviceKey)
	rng := s.newRNG(deviceKey)

	s.logger.Info("heartbeat simulation started",
		zap.String("device", deviceKey),
		zap.Duration("interval", s.interval))

	go s.loop(ctx, deviceKey, profile, rng, stop)
	return nil
}

// Stop halts the heartbeat loop for a device. Stopping a device that is not
// simulated is a no-op logged at warn level, not an error.
func (s *Simulator) Stop(deviceKey string) {
	s.mu.Lock()
	stop, ok := s.running[deviceKey]
	if ok {
		delete(s.running, deviceKey)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("stop requested for device that is not simulated",
			zap.String("device", deviceKey))
		return
	}
	close(stop)
	s.logger.Info("heartbeat simulation stopped", zap.String("device", deviceKey))
}

// Simulating reports whether the device currently has a heartbeat loop.
func (s *Simulator) Simulating(deviceKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[deviceKey]
	return ok
}

// StopAll halts every running loop; used at shutdown.
func (s *Simulator) StopAll() {
	s.mu.Lock()
	for key, stop := range s.running {
		close(stop)
		delete(s.running, key)
	}
	s.mu.Unlock()
}

func (s *Simulator) loop(ctx context.Context, deviceKey string, profile Profile, rng *rand.Rand, stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, metrics := s.tick(profile, rng)
			if err := s.adapter.OnHeartbeat(ctx, deviceKey, status, metrics); err != nil {
				s.logger.Warn("heartbeat dropped",
					zap.String("device", deviceKey), zap.Error(err))
			}
		}
	}
}

// tick produces one randomized heartbeat from the device's profile.
func (s *Simulator) tick(profile Profile, rng *rand.Rand) (model.DeviceStatus, map[string]float64) {
	metrics := map[string]float64{
		"cpu_percent":    jitter(rng, profile.BaseCPUPercent, 15),
		"memory_percent": jitter(rng, profile.BaseMemoryPercent, 10),
		"latency_ms":     jitter(rng, profile.BaseLatencyMs, profile.BaseLatencyMs/2),
	}

	roll := rng.Float64()
	switch {
	case roll < profile.CompromiseChance:
		return model.DeviceStatusCompromised, metrics
	case roll < profile.CompromiseChance+profile.UnhealthyChance:
		return model.DeviceStatusUnhealthy, metrics
	case roll < profile.CompromiseChance+profile.UnhealthyChance+profile.DegradedChance:
		metrics["cpu_percent"] = jitter(rng, 85, 10)
		return model.DeviceStatusDegraded, metrics
	default:
		return model.DeviceStatusHealthy, metrics
	}
}

func (s *Simulator) profileFor(deviceKey string) Profile {
	if p, ok := s.profiles[deviceKey]; ok {
		return p
	}
	if p, ok := s.profiles["default"]; ok {
		return p
	}
	return DefaultProfile()
}

func jitter(rng *rand.Rand, base, spread float64) float64 {
	v := base + (rng.Float64()-0.5)*2*spread
	if v < 0 {
		return 0
	}
	return v
}
