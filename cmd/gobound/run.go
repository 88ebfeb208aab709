package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gobound/internal/debug"
	"gobound/internal/emulator"
	"gobound/internal/sdlhost"
)

var (
	flagScale    int
	flagMute     bool
	flagSaveDir  string
	flagLog      bool
	flagTraceOut string
)

var runCmd = &cobra.Command{
	Use:   "run path/to/rom",
	Short: "run a ROM",
	Args:  cobra.ExactArgs(1),
	RunE:  runGobound,
}

func init() {
	runCmd.Flags().IntVar(&flagScale, "scale", 3, "display scale (1-6)")
	runCmd.Flags().BoolVar(&flagMute, "mute", false, "disable audio output")
	runCmd.Flags().StringVar(&flagSaveDir, "save-dir", "", "directory for battery-RAM saves (default: alongside the ROM)")
	runCmd.Flags().BoolVar(&flagLog, "log", false, "enable component logging")
	runCmd.Flags().StringVar(&flagTraceOut, "trace", "", "write a per-instruction CPU trace to this file")
}

func runGobound(cmd *cobra.Command, args []string) error {
	if flagScale < 1 || flagScale > 6 {
		return fmt.Errorf("scale must be between 1 and 6")
	}

	romPath := args[0]
	romData, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("reading ROM file: %w", err)
	}

	var console *emulator.Console
	if flagLog {
		logger := debug.NewLogger(10000)
		logger.SetComponentEnabled(debug.ComponentCPU, true)
		logger.SetComponentEnabled(debug.ComponentPPU, true)
		logger.SetComponentEnabled(debug.ComponentAPU, true)
		logger.SetComponentEnabled(debug.ComponentMemory, true)
		logger.SetComponentEnabled(debug.ComponentInput, true)
		logger.SetComponentEnabled(debug.ComponentTimer, true)
		logger.SetComponentEnabled(debug.ComponentSave, true)
		console = emulator.NewWithLogger(logger)
	} else {
		console = emulator.New()
	}

	savePath := saveFilePath(romPath)
	if err := console.LoadROM(romData, savePath); err != nil {
		return fmt.Errorf("loading ROM: %w", err)
	}

	if flagTraceOut != "" {
		tracer, err := debug.NewCycleLogger(flagTraceOut, 0, 0)
		if err != nil {
			return fmt.Errorf("opening trace file: %w", err)
		}
		defer tracer.Close()
		console.CPU.Tracer = tracer
	}

	host, err := sdlhost.New(console, sdlhost.Options{
		Title: fmt.Sprintf("gobound - %s", filepath.Base(romPath)),
		Scale: flagScale,
		Mute:  flagMute,
	})
	if err != nil {
		return fmt.Errorf("creating SDL host: %w", err)
	}
	defer host.Close()

	if err := host.Run(); err != nil {
		return fmt.Errorf("running host loop: %w", err)
	}
	return console.Shutdown()
}

func saveFilePath(romPath string) string {
	if flagSaveDir != "" {
		return filepath.Join(flagSaveDir, strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))+".sav")
	}
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}
