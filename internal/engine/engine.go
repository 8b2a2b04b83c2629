package engine

import (
	"context"
	"time"

	"MarchingTerrain/internal/logger"
	"MarchingTerrain/internal/terrain"
	"MarchingTerrain/internal/viewer"

	"go.uber.org/zap"
)

// Engine is the owning loop: every tick it runs the behaviours, samples the camera position into
// the streamer and refreshes dirty chunks.
type Engine struct {
	Camera     *viewer.Camera
	Streamer   *terrain.Streamer
	Behaviours *BehaviourManager

	// TickRate is the tick period. Run paces ticks on it when Realtime is set and otherwise runs
	// them back to back, reporting TickRate as the delta time.
	TickRate time.Duration
	Realtime bool

	frameTrackId int
	ticks        int
	onTick       func(tick int, deltaTime float64)
}

func NewEngine(streamer *terrain.Streamer, camera *viewer.Camera, tickRateHz float64) *Engine {
	var rate time.Duration
	if tickRateHz > 0 {
		rate = time.Duration(float64(time.Second) / tickRateHz)
	}
	return &Engine{
		Camera:     camera,
		Streamer:   streamer,
		Behaviours: NewBehaviourManager(),
		TickRate:   rate,
	}
}

// SetOnTickCallback sets a callback that will be called after every tick
func (e *Engine) SetOnTickCallback(callback func(tick int, deltaTime float64)) {
	e.onTick = callback
}

// Ticks is the number of completed ticks.
func (e *Engine) Ticks() int {
	return e.ticks
}

// Step runs one tick. Fixed updates run on every second tick. A refresh error leaves the failed
// chunks dirty for the next tick.
func (e *Engine) Step(ctx context.Context, deltaTime float64) error {
	if e.frameTrackId >= 2 {
		e.Behaviours.UpdateAllFixed()
		e.frameTrackId = 0
	}
	e.Behaviours.UpdateAll(float32(deltaTime))

	if e.Streamer.Update(e.Camera.Position) {
		logger.Log.Debug("Viewer entered chunk",
			zap.Stringer("coord", e.Streamer.Center()),
			zap.Int("tick", e.ticks))
	}
	err := e.Streamer.Refresh(ctx)

	e.frameTrackId++
	e.ticks++
	if e.onTick != nil {
		e.onTick(e.ticks, deltaTime)
	}
	return err
}

// Run ticks until ctx is done or maxTicks ticks have run. maxTicks <= 0 means no limit.
// Tick failures are logged and the loop carries on.
func (e *Engine) Run(ctx context.Context, maxTicks int) error {
	var ticker *time.Ticker
	if e.Realtime && e.TickRate > 0 {
		ticker = time.NewTicker(e.TickRate)
		defer ticker.Stop()
	}

	logger.Log.Info("Engine loop started", zap.Duration("tickRate", e.TickRate), zap.Bool("realtime", e.Realtime), zap.Int("maxTicks", maxTicks))
	previousTime := time.Now()
	for start := e.ticks; maxTicks <= 0 || e.ticks-start < maxTicks; {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		deltaTime := e.TickRate.Seconds()
		if ticker != nil {
			currentTime := time.Now()
			deltaTime = currentTime.Sub(previousTime).Seconds()
			previousTime = currentTime
		}

		if err := e.Step(ctx, deltaTime); err != nil {
			logger.Log.Error("Tick failed", zap.Int("tick", e.ticks), zap.Error(err))
		}
	}
	logger.Log.Info("Engine loop finished", zap.Int("ticks", e.ticks))
	return nil
}
