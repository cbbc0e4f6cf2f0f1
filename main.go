package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PixPMusic/gopher-apc/internal/apc"
	"github.com/PixPMusic/gopher-apc/internal/config"
	"github.com/PixPMusic/gopher-apc/internal/midi"
	"github.com/PixPMusic/gopher-apc/internal/mux"
	"github.com/PixPMusic/gopher-apc/internal/plugins"
	"github.com/PixPMusic/gopher-apc/internal/power"
	"github.com/PixPMusic/gopher-apc/internal/startup"
)

func main() {
	configFile := flag.String("config", "", "Load configuration from this file instead of the default location")
	autostart := flag.String("autostart", "", "Manage login startup: enable, disable or status")
	listPorts := flag.Bool("list-ports", false, "List available MIDI ports and exit")
	flag.Parse()

	if *autostart != "" {
		if err := handleAutostart(*autostart); err != nil {
			log.Fatalf("Autostart: %v", err)
		}
		return
	}

	// Load configuration
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize MIDI
	manager, err := midi.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize MIDI: %v", err)
	}
	defer manager.Close()

	if *listPorts {
		printPorts(manager)
		return
	}

	// Open the surface. Discovery failures are fatal: without the hardware
	// there is nothing to multiplex.
	port, err := manager.OpenPort(cfg.Port, cfg.DeviceHint)
	if err != nil {
		log.Fatalf("Failed to open surface: %v", err)
	}
	defer port.Close()
	log.Printf("Connected to %s", port.Name())

	dev := apc.NewDevice(port)
	if err := port.Listen(dev.HandleMessage); err != nil {
		log.Fatalf("Failed to start listening: %v", err)
	}

	m := mux.New(dev)

	// Register configured plugins
	deps := plugins.Deps{
		MIDI:     manager,
		Actions:  cfg.ActionStore(),
		Bindings: cfg.PadBindings,
	}
	for _, pc := range cfg.Plugins {
		zones, err := plugins.ParseZones(pc.Zones)
		if err != nil {
			log.Fatalf("Plugin %s: %v", pc.Name, err)
		}
		plugin, err := plugins.New(pc, deps)
		if err != nil {
			log.Fatalf("Plugin %s: %v", pc.Name, err)
		}
		if err := m.Register(plugin, zones); err != nil {
			log.Fatalf("Plugin %s: %v", pc.Name, err)
		}
	}

	// Blank the surface before the USB ports power down in standby and
	// restore the LEDs afterwards.
	if cfg.EnableStandbySupport {
		monitor := &power.Monitor{
			BeforeSleep: func() {
				dev.DisableEvents()
				if err := dev.Blank(); err != nil {
					log.Printf("Blank before sleep: %v", err)
				}
			},
			AfterWake: func() {
				dev.EnableEvents()
				m.Resync()
			},
		}
		if err := monitor.Start(); err != nil {
			log.Printf("Standby support unavailable: %v", err)
		} else {
			defer monitor.Stop()
		}
	}

	// Defensive periodic resync; the link drops messages under load.
	if cfg.ResyncSeconds > 0 {
		ticker := time.NewTicker(time.Duration(cfg.ResyncSeconds) * time.Second)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				m.Resync()
			}
		}()
	}

	// SIGHUP forces a full LED resync, SIGINT/SIGTERM shut down.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			log.Printf("SIGHUP received, resyncing surface")
			m.Resync()
			continue
		}
		break
	}

	log.Printf("Shutting down")
	m.Shutdown()
}

func handleAutostart(mode string) error {
	switch mode {
	case "enable":
		return startup.Enable()
	case "disable":
		return startup.Disable()
	case "status":
		if startup.IsEnabled() {
			fmt.Println("enabled")
		} else {
			fmt.Println("disabled")
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q (want enable, disable or status)", mode)
	}
}

func printPorts(manager *midi.Manager) {
	ins, err := manager.ListInPorts()
	if err != nil {
		log.Fatalf("Failed to list inputs: %v", err)
	}
	outs, err := manager.ListOutPorts()
	if err != nil {
		log.Fatalf("Failed to list outputs: %v", err)
	}
	fmt.Println("Inputs:")
	for _, name := range ins {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("Outputs:")
	for _, name := range outs {
		fmt.Printf("  %s\n", name)
	}
}
