// Command train runs a training experiment described by a YAML file or a
// built-in preset, printing progress until it finishes or is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FlavioCFOliveira/neurocore/internal/config"
	"github.com/FlavioCFOliveira/neurocore/internal/host"
	"github.com/FlavioCFOliveira/neurocore/internal/net"
	"github.com/FlavioCFOliveira/neurocore/internal/opt"
	"github.com/FlavioCFOliveira/neurocore/internal/train"
)

func main() {
	var (
		configPath = flag.String("config", "", "experiment YAML file")
		preset     = flag.String("preset", "xor", "built-in experiment when -config is not set")
		outPath    = flag.String("out", "", "model output path, overrides output.model_path")
		loadPath   = flag.String("load", "", "continue training a saved model")
		epochs     = flag.Int("epochs", 0, "override train.epochs")
		list       = flag.Bool("list", false, "list built-in presets and exit")
		dump       = flag.Bool("dump", false, "print the resolved experiment as YAML and exit")
		verbose    = flag.Bool("v", false, "debug logging")
		plateau    = flag.Int("plateau", 0, "halve the learning rate after this many epochs without improvement")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *list {
		for _, name := range config.Presets() {
			fmt.Printf("%-10s %s\n", name, config.Describe(name))
		}
		return
	}

	exp, err := resolve(*configPath, *preset)
	if err != nil {
		logger.Error("invalid experiment", "error", err)
		os.Exit(2)
	}
	if *epochs > 0 {
		exp.Train.Epochs = *epochs
	}
	if *outPath != "" {
		exp.Output.ModelPath = *outPath
	}
	if *dump {
		b, err := exp.Marshal()
		if err != nil {
			logger.Error("marshal experiment", "error", err)
			os.Exit(1)
		}
		os.Stdout.Write(b)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, exp, *loadPath, *plateau, logger); err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func resolve(configPath, preset string) (*config.Experiment, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.Preset(preset)
}

func run(ctx context.Context, exp *config.Experiment, loadPath string, plateau int, logger *slog.Logger) error {
	h := host.New(host.WithLogger(logger))
	pipeline := host.FromExperiment(exp, train.WithLogger(logger))

	var lazy lazyScheduler
	if plateau > 0 {
		build := pipeline.Trainer
		pipeline.Trainer = func(n *net.Network) (*train.Trainer, error) {
			t, err := build(n)
			if err == nil {
				lazy.Scheduler = opt.NewReduceLROnPlateau(t.Optimizer(), 0.5, plateau, 1e-4, 1e-6)
			}
			return t, err
		}
	}
	if err := h.Configure(pipeline); err != nil {
		return err
	}
	if loadPath != "" {
		if err := h.LoadModel(loadPath); err != nil {
			return err
		}
	}

	opts := exp.TrainOptions()
	callbacks, err := buildCallbacks(exp)
	if err != nil {
		return err
	}
	opts.Callbacks = callbacks
	if plateau > 0 {
		opts.Callbacks = append(opts.Callbacks, train.NewSchedulerCallback(&lazy, nil))
	}

	logEvery := max(1, exp.Train.LogEvery)
	runID, err := h.Start(ctx, opts, func(r train.EpochResult) {
		if r.Epoch%logEvery == 0 {
			logger.Debug("epoch", "epoch", r.Epoch, "loss", r.TrainLoss)
		}
	})
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: %s, %d epochs\n", runID, exp.Name, exp.Train.Epochs)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Wait()
	}()

	var last int
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			s, ok := h.Metrics().TryConsumeLatest()
			if !ok {
				continue
			}
			if s.Epoch/logEvery > last/logEvery {
				printSnapshot(s)
			}
			last = s.Epoch
		}
	}

	report, err := h.Wait()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Interrupted.")
		}
		return err
	}
	if s, ok := h.Metrics().Latest(); ok {
		printSnapshot(s)
	}
	if report.Stopped {
		fmt.Printf("Stopped early after %d epochs.\n", len(report.History))
	}

	if exp.Output.ModelPath != "" {
		if err := h.SaveModel(exp.Output.ModelPath); err != nil {
			return err
		}
		fmt.Printf("Model saved to %s\n", exp.Output.ModelPath)
	}
	return nil
}

func buildCallbacks(exp *config.Experiment) ([]train.Callback, error) {
	var cbs []train.Callback
	if exp.Train.EarlyStopPatience > 0 {
		es, err := train.NewEarlyStopping(train.ValOrTrainLoss, exp.Train.EarlyStopPatience, exp.Train.EarlyStopMinDelta)
		if err != nil {
			return nil, err
		}
		es.OnStop = func() { fmt.Println("Early stopping: no improvement") }
		cbs = append(cbs, es)
	}
	if exp.Output.CheckpointPath != "" {
		cbs = append(cbs, train.NewModelCheckpoint(exp.Output.CheckpointPath, nil))
	}
	if exp.Output.CSVLogPath != "" {
		cbs = append(cbs, train.NewCSVLogger(exp.Output.CSVLogPath, false))
	}
	return cbs, nil
}

// lazyScheduler forwards to a scheduler created with the run's optimizer.
type lazyScheduler struct {
	opt.Scheduler
}

func printSnapshot(s host.Snapshot) {
	line := fmt.Sprintf("Epoch %d: loss = %.6f", s.Epoch, s.TrainLoss)
	if s.HasValLoss {
		line += fmt.Sprintf(", val_loss = %.6f", s.ValLoss)
	}
	if s.HasAccuracy {
		line += fmt.Sprintf(", accuracy = %.2f%%", s.Accuracy*100)
	}
	fmt.Printf("%s (%s)\n", line, s.Elapsed.Round(time.Millisecond))
}
