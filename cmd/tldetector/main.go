// Command tldetector replays recorded vehicle inputs through the traffic
// light detector and publishes one stop-waypoint decision per camera
// frame as JSON lines on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/tldetector/internal/db"
	"github.com/banshee-data/tldetector/internal/version"
)

var (
	scenario    = flag.String("scenario", "", "JSON-lines recording to replay (required)")
	sitePath    = flag.String("site", "config/site.sim.yaml", "Site YAML with camera_info and stop_line_positions")
	tuningPath  = flag.String("tuning", "", "Tuning JSON (defaults to config/tuning.defaults.json)")
	dbPath      = flag.String("db", "", "SQLite decision log; empty disables recording")
	listen      = flag.String("listen", "", "HTTP monitor listen address, e.g. :8080; empty disables")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address, e.g. :50051; empty disables")
	migrateCmd  = flag.Bool("migrate", false, "Run a migrate command against -db and exit (try: -migrate help)")
	rate        = flag.Float64("rate", 0, "Playback speed relative to recorded time; 0 replays as fast as possible")
	linger      = flag.Bool("linger", false, "Keep the monitor and health servers up after the recording ends")
	skipImages  = flag.Bool("skip-images", false, "Ignore frame images and run the ground-truth path only")
	logLevel    = flag.String("log-level", "ops", "Log streams to enable: ops, diag, trace or off")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *migrateCmd {
		if *dbPath == "" {
			log.Fatal("-migrate requires -db")
		}
		if err := db.RunMigrateCommand(flag.Args(), *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if *scenario == "" {
		flag.Usage()
		log.Fatal("-scenario is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := Options{
		Scenario:   *scenario,
		SitePath:   *sitePath,
		TuningPath: *tuningPath,
		DBPath:     *dbPath,
		Listen:     *listen,
		GRPCListen: *grpcListen,
		Rate:       *rate,
		Linger:     *linger,
		SkipImages: *skipImages,
		LogLevel:   *logLevel,
		Out:        os.Stdout,
		LogOut:     os.Stderr,
	}
	if err := Run(ctx, opts); err != nil {
		log.Fatalf("tldetector: %v", err)
	}
}
