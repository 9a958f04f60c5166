package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/banshee-data/tldetector/internal/classifier"
	"github.com/banshee-data/tldetector/internal/config"
	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/db"
	"github.com/banshee-data/tldetector/internal/monitor"
	"github.com/banshee-data/tldetector/internal/monitoring"
	"github.com/banshee-data/tldetector/internal/perception"
	"github.com/banshee-data/tldetector/internal/replay"
	"github.com/banshee-data/tldetector/internal/stabilizer"
	"github.com/banshee-data/tldetector/internal/tfbuffer"
	"github.com/banshee-data/tldetector/internal/timeutil"
	"github.com/banshee-data/tldetector/internal/version"
)

// Options is the resolved command line.
type Options struct {
	Scenario   string
	SitePath   string
	TuningPath string
	DBPath     string
	Listen     string
	GRPCListen string
	Rate       float64
	Linger     bool
	SkipImages bool
	LogLevel   string

	Out    io.Writer // decision stream
	LogOut io.Writer
	Clock  timeutil.Clock
}

func configureLogging(level string, w io.Writer) {
	writers := monitoring.WritersForLevel(level, w)
	perception.SetLogWriters(writers.Ops, writers.Diag, writers.Trace)
	coordinator.SetLogWriters(writers.Ops, writers.Diag, writers.Trace)
	replay.SetLogWriters(writers)
	if writers.Ops == nil {
		monitoring.SetLogger(nil)
	} else {
		monitoring.SetLogger(log.New(writers.Ops, "", log.LstdFlags|log.Lmicroseconds).Printf)
	}
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.MustLoadDefaultConfig(), nil
	}
	tuning, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, err
	}
	return tuning, tuning.Validate()
}

// Run wires the detector and replays opts.Scenario through it.
func Run(ctx context.Context, opts Options) error {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.LogOut == nil {
		opts.LogOut = io.Discard
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	configureLogging(opts.LogLevel, opts.LogOut)
	monitoring.Logf("%s starting", version.String())

	tuning, err := loadTuning(opts.TuningPath)
	if err != nil {
		return fmt.Errorf("tuning config: %w", err)
	}
	site, err := config.LoadSiteConfig(opts.SitePath)
	if err != nil {
		return fmt.Errorf("site config: %w", err)
	}

	transforms := tfbuffer.New(opts.Clock, tuning.GetTransformCacheDuration())

	pcfg := perception.DefaultConfig()
	pcfg.Projector.FallbackFocalLengthX = tuning.GetFallbackFocalLengthX()
	pcfg.Projector.FallbackFocalLengthY = tuning.GetFallbackFocalLengthY()
	pcfg.Projector.MinFocalLength = tuning.GetMinFocalLength()
	pcfg.Projector.VerticalOffset = tuning.GetVerticalOffset()
	pcfg.TransformTimeout = tuning.GetTransformTimeout()
	pcfg.CropHalfWidth = tuning.GetCropHalfWidth()
	pcfg.CropHalfHeight = tuning.GetCropHalfHeight()
	pcfg.StopLines = site.StopLinePositions
	pcfg.Clock = opts.Clock
	pipeline := perception.NewPipeline(pcfg, classifier.NewHueClassifier(), transforms)

	history := monitor.NewDecisionHistory(0)
	publishers := coordinator.FanOut{coordinator.NewJSONLinesPublisher(opts.Out), history}

	var database *db.DB
	var session *db.Session
	if opts.DBPath != "" {
		database, err = db.NewDB(opts.DBPath)
		if err != nil {
			return fmt.Errorf("decision log: %w", err)
		}
		defer database.Close()

		session, err = database.StartSession(ctx, filepath.Base(opts.Scenario), filepath.Base(opts.SitePath), tuning, opts.Clock.Now())
		if err != nil {
			return err
		}
		publishers = append(publishers, db.NewDecisionLog(database, session.ID))
		monitoring.Logf("recording decisions to %s (session %s)", opts.DBPath, session.ID)
	}

	coord := coordinator.New(
		coordinator.Config{MinFrameInterval: tuning.MinFrameInterval(), Clock: opts.Clock},
		pipeline,
		stabilizer.New(tuning.GetStateCountThreshold()),
		publishers,
		transforms,
	)

	recording, err := replay.Open(opts.Scenario, replay.Options{
		Base:       opts.Clock.Now(),
		Intrinsics: site.CameraInfo,
		SkipImages: opts.SkipImages,
	})
	if err != nil {
		return err
	}
	defer recording.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		err := coord.Run(ctx)
		if !opts.Linger {
			cancel()
		}
		return err
	})

	p.Go(func(ctx context.Context) error {
		defer coord.Close()
		stats, err := replay.Player{Rate: opts.Rate, Clock: opts.Clock}.Play(ctx, recording, coord.Submit)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("replay %s: %w", opts.Scenario, err)
		}
		monitoring.Logf("replayed %d events (%d frames) from %s", stats.Events, stats.Frames, opts.Scenario)
		return nil
	})

	if opts.Listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address: opts.Listen,
			Source:  coord,
			History: history,
			DB:      database,
		})
		if err != nil {
			cancel()
			p.Wait()
			return err
		}
		p.Go(ws.Start)
	}

	if opts.GRPCListen != "" {
		hs := monitor.NewHealthServer(coord.Ready)
		if err := hs.Start(opts.GRPCListen); err != nil {
			cancel()
			p.Wait()
			return err
		}
		defer hs.Stop()
		p.Go(func(ctx context.Context) error {
			hs.Watch(ctx, opts.Clock, monitor.DefaultHealthPollInterval)
			return nil
		})
	}

	runErr := p.Wait()

	if session != nil {
		endCtx, endCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer endCancel()
		if err := database.EndSession(endCtx, session.ID, opts.Clock.Now()); err != nil {
			monitoring.Logf("failed to close session %s: %v", session.ID, err)
		}
	}
	if d, ok := coord.LastDecision(); ok {
		monitoring.Logf("final decision: seq=%d waypoint=%d confirmed=%s", d.Seq, d.Waypoint, d.Confirmed)
	}
	return runErr
}
