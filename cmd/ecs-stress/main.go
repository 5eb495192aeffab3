package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plus3/simcore/ecs"
)

type opCounters struct {
	creates   atomic.Int64
	destroys  atomic.Int64
	adds      atomic.Int64
	reads     atomic.Int64
	writes    atomic.Int64
	removes   atomic.Int64
	published atomic.Int64
	drained   atomic.Int64
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML scenario file.")
	duration := flag.Duration("duration", 0, "Total run duration (overrides scenario).")
	workers := flag.Int("workers", 0, "Number of worker goroutines (overrides scenario).")
	entityCount := flag.Int("entities", 0, "Initial number of entities (overrides scenario).")
	profileMode := flag.String("profile", "", "Enable profiling: cpu or mem.")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("loading scenario failed", zap.Error(err))
	}
	if *duration > 0 {
		cfg.Duration = *duration
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *entityCount > 0 {
		cfg.Entities = *entityCount
	}

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	case "":
	default:
		logger.Fatal("unknown profile mode", zap.String("mode", *profileMode))
	}

	logger.Info("starting substrate stress test",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Int("entities", cfg.Entities))

	em := ecs.NewEntityManager()
	bus := ecs.NewMessageBus()
	am := ecs.NewComponentAccessManager(em, bus)

	counters := &opCounters{}
	ecs.Subscribe(bus, func(EconomyTickMessage) {
		counters.drained.Add(1)
	})
	ecs.Subscribe(bus, func(BattleResolvedMessage) {
		counters.drained.Add(1)
	})

	// Initial population: each entity starts with a transform plus a random
	// spread of the heavier components.
	handles := make([]ecs.EntityID, cfg.Entities)
	for i := range handles {
		h := em.CreateEntity("")
		ecs.AddComponent(am, h, Transform{X: rand.Float64(), Y: rand.Float64()})
		if i%2 == 0 {
			ecs.AddComponent(am, h, Population{Count: int64(rand.Intn(100000))})
		}
		if i%3 == 0 {
			ecs.AddComponent(am, h, Treasury{Gold: int64(rand.Intn(10000))})
		}
		if i%5 == 0 {
			ecs.AddComponent(am, h, Velocity{DX: rand.Float64(), DY: rand.Float64()})
		}
		handles[i] = h
	}
	logger.Info("population complete", zap.Int("entities", len(handles)))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	// Drain loop: one goroutine plays the role of the frame thread.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.DrainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				bus.ProcessQueuedMessages()
				return nil
			case <-ticker.C:
				bus.ProcessQueuedMessages()
			}
		}
	})

	for w := 0; w < cfg.Workers; w++ {
		w := w
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(w) + 1))
			seq := 0
			for ctx.Err() == nil {
				h := handles[rng.Intn(len(handles))]

				switch rng.Intn(10) {
				case 0:
					fresh := em.CreateEntity("")
					ecs.AddComponent(am, fresh, Transform{})
					counters.creates.Add(1)
					counters.adds.Add(1)
					if em.DestroyEntity(fresh) {
						counters.destroys.Add(1)
					}
				case 1, 2:
					if ecs.AddComponent(am, h, Morale{Level: rng.Float64()}) {
						counters.adds.Add(1)
					}
				case 3:
					if ecs.RemoveComponent[Morale](am, h) {
						counters.removes.Add(1)
					}
				case 4, 5:
					guard := ecs.GetComponentMutable[Transform](am, h)
					if guard.Valid() {
						guard.Get().X += rng.Float64() - 0.5
						counters.writes.Add(1)
					}
					guard.Release()
				default:
					guard := ecs.GetComponent[Transform](am, h)
					if guard.Valid() {
						_ = guard.Get().X
						counters.reads.Add(1)
					}
					guard.Release()
				}

				for i := 0; i < cfg.MessageBurst; i++ {
					seq++
					if seq%7 == 0 {
						ecs.Enqueue(bus, BattleResolvedMessage{Attacker: h.ID, Casualties: rng.Intn(500)}, ecs.PriorityHigh)
					} else {
						ecs.Enqueue(bus, EconomyTickMessage{Worker: w, Seq: seq}, ecs.PriorityNormal)
					}
					counters.published.Add(1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("stress run failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	integrity := em.ValidateIntegrity()
	logger.Info("stress run complete",
		zap.Duration("elapsed", elapsed),
		zap.Int64("reads", counters.reads.Load()),
		zap.Int64("writes", counters.writes.Load()),
		zap.Bool("integrity", integrity.Valid))

	report := buildReport(cfg, elapsed, counters, em, am, integrity)
	if err := report.Render(os.Stdout); err != nil {
		logger.Fatal("rendering report failed", zap.Error(err))
	}
}
