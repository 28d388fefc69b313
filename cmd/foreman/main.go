package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crewline/foreman/internal/decision"
	"github.com/crewline/foreman/internal/events"
	"github.com/crewline/foreman/internal/model"
	"github.com/crewline/foreman/internal/taskfile"
	"github.com/crewline/foreman/internal/watch"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "plan":
		runPlan(os.Args[2:])
	case "next":
		runNext(os.Args[2:])
	case "predict":
		runPredict(os.Args[2:])
	case "resolve":
		runResolve(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "journal":
		runJournal(os.Args[2:])
	case "version":
		fmt.Printf("foreman %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runPlan(args []string) {
	var tasksFile, contextFile, configFile, outFile string
	jsonOutput := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tasks":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--tasks requires a value")
				os.Exit(1)
			}
			i++
			tasksFile = args[i]
		case "--context":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--context requires a value")
				os.Exit(1)
			}
			i++
			contextFile = args[i]
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configFile = args[i]
		case "--out":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--out requires a value")
				os.Exit(1)
			}
			i++
			outFile = args[i]
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: foreman plan --tasks <file> --context <file> [--config <file>] [--json] [--out <file>]")
			os.Exit(1)
		}
	}

	if tasksFile == "" || contextFile == "" {
		fmt.Fprintln(os.Stderr, "usage: foreman plan --tasks <file> --context <file> [--config <file>] [--json] [--out <file>]")
		os.Exit(1)
	}

	engine, journal := buildEngine(configFile)
	if journal != nil {
		defer journal.Close()
	}

	tasks, err := taskfile.LoadTaskSet(tasksFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan: %v\n", err)
		os.Exit(1)
	}
	wctx, err := taskfile.LoadContext(contextFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan: %v\n", err)
		os.Exit(1)
	}

	d, err := engine.PrioritizeTasks(context.Background(), tasks, wctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan: %v\n", err)
		os.Exit(1)
	}

	emitDecision(d, jsonOutput, outFile)
}

func runNext(args []string) {
	var tasksFile, contextFile, configFile string
	jsonOutput := false
	watchMode := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tasks":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--tasks requires a value")
				os.Exit(1)
			}
			i++
			tasksFile = args[i]
		case "--context":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--context requires a value")
				os.Exit(1)
			}
			i++
			contextFile = args[i]
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configFile = args[i]
		case "--watch":
			watchMode = true
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: foreman next --tasks <file> --context <file> [--config <file>] [--watch] [--json]")
			os.Exit(1)
		}
	}

	if tasksFile == "" || contextFile == "" {
		fmt.Fprintln(os.Stderr, "usage: foreman next --tasks <file> --context <file> [--config <file>] [--watch] [--json]")
		os.Exit(1)
	}

	engine, journal := buildEngine(configFile)
	if journal != nil {
		defer journal.Close()
	}
	if watchMode {
		bus := events.NewBus(16)
		defer bus.Close()
		engine.SetBus(bus)
		unsubscribe := bus.Subscribe(events.EventConfigReloaded, func(e events.Event) {
			fmt.Fprintf(os.Stderr, "config reloaded: primary_timeout_ms=%v cache_ttl_sec=%v\n",
				e.Data["primary_timeout_ms"], e.Data["cache_ttl_sec"])
		})
		defer unsubscribe()
	}

	var emitMu sync.Mutex
	emitted := 0
	recommend := func() error {
		emitMu.Lock()
		defer emitMu.Unlock()

		tasks, err := taskfile.LoadTaskSet(tasksFile)
		if err != nil {
			return err
		}
		wctx, err := taskfile.LoadContext(contextFile)
		if err != nil {
			return err
		}
		d, err := engine.NextTask(context.Background(), tasks, wctx)
		if err != nil {
			return err
		}

		if emitted > 0 && !jsonOutput {
			fmt.Println("---")
		}
		emitted++
		emitDecision(d, jsonOutput, "")
		return nil
	}

	if err := recommend(); err != nil {
		fmt.Fprintf(os.Stderr, "next: %v\n", err)
		if !watchMode {
			os.Exit(1)
		}
	}
	if !watchMode {
		return
	}

	debounce := time.Duration(engine.Config().Watcher.DebounceMs) * time.Millisecond
	paths := []string{tasksFile, contextFile}
	configAbs := ""
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "next: resolve %s: %v\n", configFile, err)
			os.Exit(1)
		}
		configAbs = abs
		paths = append(paths, configFile)
	}

	// The watcher reports absolute paths.
	logger := log.New(os.Stderr, "", 0)
	w, err := watch.New(paths, debounce, func(path string) {
		if configAbs != "" && path == configAbs {
			cfg, err := decision.LoadConfig(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "next: reload config: %v\n", err)
				return
			}
			if err := engine.Reconfigure(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "next: reconfigure: %v\n", err)
				return
			}
		}
		if err := recommend(); err != nil {
			fmt.Fprintf(os.Stderr, "next: %v\n", err)
		}
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "next: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	w.Run(ctx)
}

func runPredict(args []string) {
	var tasksFile, taskID, configFile string
	jsonOutput := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tasks":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--tasks requires a value")
				os.Exit(1)
			}
			i++
			tasksFile = args[i]
		case "--task-id":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--task-id requires a value")
				os.Exit(1)
			}
			i++
			taskID = args[i]
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configFile = args[i]
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: foreman predict --tasks <file> --task-id <id> [--config <file>] [--json]")
			os.Exit(1)
		}
	}

	if tasksFile == "" || taskID == "" {
		fmt.Fprintln(os.Stderr, "usage: foreman predict --tasks <file> --task-id <id> [--config <file>] [--json]")
		os.Exit(1)
	}

	engine, journal := buildEngine(configFile)
	if journal != nil {
		defer journal.Close()
	}

	tasks, err := taskfile.LoadTaskSet(tasksFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "predict: %v\n", err)
		os.Exit(1)
	}

	var target *model.Task
	for i := range tasks {
		if tasks[i].ID == taskID {
			target = &tasks[i]
			break
		}
	}
	if target == nil {
		fmt.Fprintf(os.Stderr, "predict: task %q not found in %s\n", taskID, tasksFile)
		os.Exit(1)
	}

	d, err := engine.PredictLifecycle(context.Background(), *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "predict: %v\n", err)
		os.Exit(1)
	}

	emitDecision(d, jsonOutput, "")
}

func runResolve(args []string) {
	var bundleFile, configFile, outFile string
	jsonOutput := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--bundle":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--bundle requires a value")
				os.Exit(1)
			}
			i++
			bundleFile = args[i]
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configFile = args[i]
		case "--out":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--out requires a value")
				os.Exit(1)
			}
			i++
			outFile = args[i]
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: foreman resolve --bundle <file> [--config <file>] [--json] [--out <file>]")
			os.Exit(1)
		}
	}

	if bundleFile == "" {
		fmt.Fprintln(os.Stderr, "usage: foreman resolve --bundle <file> [--config <file>] [--json] [--out <file>]")
		os.Exit(1)
	}

	engine, journal := buildEngine(configFile)
	if journal != nil {
		defer journal.Close()
	}

	bundle, err := taskfile.LoadConflict(bundleFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
		os.Exit(1)
	}

	d, err := engine.ResolveConflict(context.Background(), bundle.Local, bundle.Remote, bundle.Original)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
		os.Exit(1)
	}

	emitDecision(d, jsonOutput, outFile)
}

func runConfig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: foreman config init [--out <path>]")
		os.Exit(1)
	}
	switch args[0] {
	case "init":
		runConfigInit(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown config subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: foreman config init [--out <path>]")
		os.Exit(1)
	}
}

func runConfigInit(args []string) {
	out := "foreman.yaml"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--out":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--out requires a value")
				os.Exit(1)
			}
			i++
			out = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: foreman config init [--out <path>]\n", args[i])
			os.Exit(1)
		}
	}

	if err := decision.WriteDefaultConfig(out); err != nil {
		fmt.Fprintf(os.Stderr, "config init: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote default configuration to %s\n", out)
}

func runJournal(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: foreman journal verify [--path <file>] [--config <file>]")
		os.Exit(1)
	}
	switch args[0] {
	case "verify":
		runJournalVerify(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown journal subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: foreman journal verify [--path <file>] [--config <file>]")
		os.Exit(1)
	}
}

func runJournalVerify(args []string) {
	var path, configFile string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--path":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--path requires a value")
				os.Exit(1)
			}
			i++
			path = args[i]
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configFile = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: foreman journal verify [--path <file>] [--config <file>]\n", args[i])
			os.Exit(1)
		}
	}

	if path == "" {
		cfg := decision.DefaultConfig()
		if configFile != "" {
			var err error
			cfg, err = decision.LoadConfig(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "journal verify: %v\n", err)
				os.Exit(1)
			}
		}
		path = cfg.Journal.Path
	}

	total, valid, err := events.VerifyJournal(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal verify: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d entries, %d valid\n", path, total, valid)
	if valid != total {
		os.Exit(1)
	}
}

// buildEngine loads configuration and assembles the engine with no primary
// provider, so every decision comes from the rule engine. The returned
// journal is nil unless enabled in the config.
func buildEngine(configFile string) (*decision.Engine, *events.Journal) {
	var (
		cfg decision.Config
		err error
	)
	if configFile != "" {
		cfg, err = decision.LoadConfig(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = decision.DefaultConfig()
	}

	engine, err := decision.New(cfg, log.New(os.Stderr, "", 0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "create engine: %v\n", err)
		os.Exit(1)
	}

	var journal *events.Journal
	if cfg.Journal.Enabled {
		journal, err = events.NewJournal(cfg.Journal.Path, cfg.Journal.MaxBytes)
		if errors.Is(err, events.ErrJournalLocked) {
			// Another foreman invocation owns the journal. Decisions still
			// work, they just go unrecorded.
			fmt.Fprintf(os.Stderr, "warning: %v, continuing without journal\n", err)
			journal = nil
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
			os.Exit(1)
		}
		if journal != nil {
			journal.EnableChecksum(true)
			engine.SetJournal(journal)
		}
	}

	return engine, journal
}

// emitDecision renders a decision as YAML (default) or JSON, to stdout or
// atomically to outFile.
func emitDecision(d *decision.Decision, jsonOutput bool, outFile string) {
	var (
		data []byte
		err  error
	)
	if jsonOutput {
		data, err = json.MarshalIndent(d, "", "  ")
	} else {
		data, err = yaml.Marshal(d)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode decision: %v\n", err)
		os.Exit(1)
	}
	if jsonOutput {
		data = append(data, '\n')
	}

	if outFile != "" {
		if err := taskfile.AtomicWriteRaw(outFile, data); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", outFile, err)
			os.Exit(1)
		}
		return
	}
	os.Stdout.Write(data)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `foreman %s — Construction task decision engine

Usage: foreman <command> [options]

Decisions:
  plan --tasks <file> --context <file> [--config <file>] [--json] [--out <file>]
                    Prioritize every task for the current site conditions
  next --tasks <file> --context <file> [--config <file>] [--watch] [--json]
                    Recommend the single task to work on now
  predict --tasks <file> --task-id <id> [--config <file>] [--json]
                    Forecast completion, risks, and bottleneck likelihood
  resolve --bundle <file> [--config <file>] [--json] [--out <file>]
                    Merge two offline edits of the same task

Utilities:
  config init [--out <path>]     Write the default configuration
  journal verify [--path <file>] Check decision journal integrity
  version                        Show version
  help                           Show this help

`, version)
}
