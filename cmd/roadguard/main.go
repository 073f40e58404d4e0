// Command roadguard replays a JSONL frame log through the behavioral
// tracking engine: one JSON object per line carrying a frame's segments,
// detections, and region of interest. Results are persisted to sqlite and
// a run summary is printed on completion.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/roadguard-data/roadguard/internal/config"
	"github.com/roadguard-data/roadguard/internal/db"
	"github.com/roadguard-data/roadguard/internal/monitoring"
	"github.com/roadguard-data/roadguard/internal/vision/l1frames"
	"github.com/roadguard-data/roadguard/internal/vision/monitor"
	"github.com/roadguard-data/roadguard/internal/vision/pipeline"
	"github.com/roadguard-data/roadguard/internal/vision/storage/sqlite"
)

// Lines can carry dense segment sets; allow well past bufio's default.
const maxLineBytes = 16 * 1024 * 1024

func main() {
	framesPath := flag.String("frames", "", "Path to JSONL frame log (required)")
	dbPath := flag.String("db", "roadguard.db", "Path to sqlite database")
	migrationsDir := flag.String("migrations", "internal/db/migrations", "Path to schema migrations")
	configPath := flag.String("config", "", "Path to tuning config JSON (defaults to built-in values)")
	plotsDir := flag.String("plots", "", "Directory for lane-fit diagnostic plots (disabled when empty)")
	frameHeight := flag.Float64("height", 720, "Frame height in pixels, for plot bounds")
	debugLog := flag.Bool("debug", false, "Route pipeline diagnostics to stderr")
	flag.Parse()

	if *framesPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *debugLog {
		monitoring.SetLogger(log.Printf)
		pipeline.SetLegacyLogger(os.Stderr)
	} else {
		// Keep ops-level warnings visible even in quiet runs.
		pipeline.SetLogWriters(os.Stderr, nil, nil)
	}

	if err := run(*framesPath, *dbPath, *migrationsDir, *configPath, *plotsDir, *frameHeight); err != nil {
		fmt.Fprintf(os.Stderr, "roadguard: %v\n", err)
		os.Exit(1)
	}
}

func run(framesPath, dbPath, migrationsDir, configPath, plotsDir string, frameHeight float64) error {
	tuning, err := loadTuning(configPath)
	if err != nil {
		return err
	}

	database, err := db.NewDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.MigrateUp(migrationsDir); err != nil {
		return fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	manager := sqlite.NewAnalysisRunManager(database.DB)
	runID, err := manager.StartRun(framesPath, tuning)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	var plotter *monitor.LanePlotter
	engineCfg := pipeline.EngineConfig{
		Tuning:     tuning,
		Sink:       pipeline.NewDBSink(database.DB),
		RunManager: manager,
	}
	if plotsDir != "" {
		plotter = monitor.NewLanePlotter(frameHeight)
		if err := plotter.Start(plotsDir); err != nil {
			return fmt.Errorf("start plotter: %w", err)
		}
		engineCfg.Recorder = plotter
	}

	engine := pipeline.NewEngine(engineCfg)

	if err := replay(engine, framesPath); err != nil {
		if ferr := manager.FailRun(err.Error()); ferr != nil {
			fmt.Fprintf(os.Stderr, "roadguard: failed to record run failure: %v\n", ferr)
		}
		return err
	}

	if err := manager.CompleteRun(); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}

	if plotter != nil {
		plotter.Stop()
		if n, err := plotter.GeneratePlots(); err != nil {
			fmt.Fprintf(os.Stderr, "roadguard: plot generation: %v\n", err)
		} else if n > 0 {
			fmt.Printf("Wrote %d diagnostic plots to %s\n", n, plotsDir)
		}
	}

	printSummary(database, engine, runID)
	return nil
}

func loadTuning(configPath string) (*config.TuningConfig, error) {
	if configPath == "" {
		return config.EmptyTuningConfig(), nil
	}
	tuning, err := config.LoadTuningConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load tuning config: %w", err)
	}
	return tuning, nil
}

// replay streams frames through the engine in file order. A malformed line
// is skipped with a warning; a read error aborts the run.
func replay(engine *pipeline.Engine, framesPath string) error {
	f, err := os.Open(framesPath)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	badLines := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame l1frames.Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			badLines++
			fmt.Fprintf(os.Stderr, "roadguard: line %d: skipping malformed frame: %v\n", lineNo, err)
			continue
		}

		engine.ProcessFrame(&frame)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", framesPath, err)
	}
	if badLines > 0 {
		fmt.Fprintf(os.Stderr, "roadguard: skipped %d malformed lines\n", badLines)
	}

	return nil
}

func printSummary(database *db.DB, engine *pipeline.Engine, runID string) {
	counters := engine.Counters()
	fmt.Printf("Run %s\n", runID)
	fmt.Printf("  frames processed:    %d\n", counters.FramesProcessed)
	fmt.Printf("  segments dropped:    %d\n", counters.SegmentsDropped)
	fmt.Printf("  detections dropped:  %d\n", counters.DetectionsDropped)
	fmt.Printf("  detections ignored:  %d\n", counters.DetectionsIgnored)
	fmt.Printf("  tracks created:      %d\n", engine.Store().Len())
	fmt.Printf("  alarms raised:       %d\n", counters.AlarmsRaised)

	counts, err := sqlite.GetAlarmCounts(database.DB, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roadguard: alarm summary: %v\n", err)
		return
	}
	for alarm, n := range counts {
		fmt.Printf("  %-22s %d\n", alarm+":", n)
	}
}
