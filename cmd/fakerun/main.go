// Command fakerun simulates a training script so the dashboard has live data
// to show. It writes the same artifacts a real run would.
package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"runboard/internal/logging"
	"runboard/internal/runlog"
)

func main() {
	args, err := runlog.ParseArgs("fakerun", os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	logger, closer, err := logging.New(logging.Options{Path: filepath.Join(args.OutputDir, "logs"), Level: "info"})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer closer.Close()

	run, err := runlog.Initialize(args, logger)
	if err != nil {
		log.Fatalf("Failed to initialize run: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := train(ctx, run); err != nil {
		run.Logger.LogError(err.Error())
		_ = run.Logger.Flush()
		log.Fatalf("Training failed: %v", err)
	}
	run.Logger.LogCompletion()
}

type trainingConfig struct {
	epochs        int
	stepsPerEpoch int
	stepDelay     time.Duration
}

func readTrainingConfig(cfg map[string]any) trainingConfig {
	tc := trainingConfig{epochs: 5, stepsPerEpoch: 50, stepDelay: 50 * time.Millisecond}
	training, _ := cfg["training"].(map[string]any)
	if v, ok := training["epochs"].(float64); ok && v > 0 {
		tc.epochs = int(v)
	}
	if v, ok := training["steps_per_epoch"].(float64); ok && v > 0 {
		tc.stepsPerEpoch = int(v)
	}
	if v, ok := training["step_delay_ms"].(float64); ok && v >= 0 {
		tc.stepDelay = time.Duration(v) * time.Millisecond
	}
	return tc
}

func train(ctx context.Context, run *runlog.Run) error {
	tc := readTrainingConfig(run.Config)
	var valHistory []float64

	for epoch := 1; epoch <= tc.epochs; epoch++ {
		timer := runlog.StartTimer(fmt.Sprintf("epoch_%d", epoch))
		for step := 0; step < tc.stepsPerEpoch; step++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(tc.stepDelay):
			}
			progress := float64((epoch-1)*tc.stepsPerEpoch+step) / float64(tc.epochs*tc.stepsPerEpoch)
			run.Logger.LogTrainingStep(epoch, step, runlog.Metrics{
				"loss":          noisyLoss(progress),
				"learning_rate": 1e-3 * (1 - progress),
			})
		}

		valLoss := noisyLoss(float64(epoch)/float64(tc.epochs)) + 0.05
		valHistory = append(valHistory, valLoss)
		if err := run.Logger.LogEpoch(epoch, runlog.Metrics{
			"val_loss":      valLoss,
			"epoch_seconds": timer.Elapsed().Seconds(),
		}); err != nil {
			return err
		}

		if err := savePlot(run.Logger.EpochPlotPath("loss_curves", epoch), valHistory); err != nil {
			return err
		}
		if err := savePlot(run.Logger.PlotPath("loss_curves"), valHistory); err != nil {
			return err
		}
		if err := savePlot(filepath.Join(run.Dirs.Samples, fmt.Sprintf("sample_epoch_%d.png", epoch)), valHistory[len(valHistory)-1:]); err != nil {
			return err
		}
		ckpt := filepath.Join(run.Dirs.Checkpoints, fmt.Sprintf("epoch_%d.ckpt", epoch))
		if err := os.WriteFile(ckpt, []byte(fmt.Sprintf("epoch=%d val_loss=%f\n", epoch, valLoss)), 0o644); err != nil {
			return err
		}
		run.Logger.LogCheckpoint(ckpt, epoch)
	}
	return run.Logger.Flush()
}

func noisyLoss(progress float64) float64 {
	return 2*math.Exp(-3*progress) + 0.1 + rand.Float64()*0.05
}

// savePlot draws values as a simple line chart.
func savePlot(path string, values []float64) error {
	const w, h = 320, 200
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.White)
		}
	}
	maxV := 0.0
	for _, v := range values {
		maxV = math.Max(maxV, v)
	}
	if maxV == 0 {
		maxV = 1
	}
	line := color.RGBA{R: 30, G: 90, B: 200, A: 255}
	for i, v := range values {
		x := 10
		if len(values) > 1 {
			x = 10 + i*(w-20)/(len(values)-1)
		}
		y := h - 10 - int(v/maxV*float64(h-20))
		for dx := -2; dx <= 2; dx++ {
			for dy := -2; dy <= 2; dy++ {
				img.Set(x+dx, y+dy, line)
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
