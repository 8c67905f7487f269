// Gray Logic Panel - Home Assistant bridge for wall-mounted display panels
//
// This is the main entry point for the panel bridge. It exposes the panel's
// display backlight, status LED, PIR motion sensor and CPU temperature to
// Home Assistant over MQTT device discovery, and keeps the published state
// reconciled with the hardware.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-panel/internal/actuation"
	"github.com/nerrad567/gray-logic-panel/internal/api"
	"github.com/nerrad567/gray-logic-panel/internal/device"
	"github.com/nerrad567/gray-logic-panel/internal/hardware"
	"github.com/nerrad567/gray-logic-panel/internal/hass"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-panel/internal/reconcile"
	"github.com/nerrad567/gray-logic-panel/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configFlag overrides GRAYLOGIC_CONFIG when set.
var configFlag = flag.String("config", "", "path to config.yaml")

// Simulated hardware parameters.
const (
	simulatedMaxBrightness = 255
	simulatedOffDuration   = 2 * time.Second
)

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Startup sequence: linear wiring of every component
	log := logging.Default()
	log.Info("starting Gray Logic Panel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("device_id", cfg.Device.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// State history (optional)
	var history *device.SQLiteStateHistoryRepository
	if cfg.Database.Enabled {
		db, dbErr := openDatabase(ctx, cfg, log)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		history = device.NewSQLiteStateHistoryRepository(db.DB)
		pruneHistory(ctx, history, cfg, log)
	} else {
		log.Info("state history disabled")
	}

	// Telemetry (optional, never fatal)
	influxClient := connectInfluxDB(cfg, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Hardware
	hw, err := hardwareFactory(cfg, log)
	if err != nil {
		return fmt.Errorf("initialising hardware: %w", err)
	}
	if hw.motion != nil {
		// The GPIO line is held from construction, so release it on every
		// exit path, not only after Start.
		defer func() {
			log.Info("closing motion sensor")
			if closeErr := hw.motion.Close(); closeErr != nil {
				log.Error("error closing motion sensor", "error", closeErr)
			}
		}()
	}

	maxBrightness, err := hw.backlight.ReadMaxBrightness()
	if err != nil {
		return fmt.Errorf("reading max brightness: %w", err)
	}

	supervisor := actuation.NewSupervisor(hw.display)
	supervisor.SetLogger(log.With("component", "actuation"))

	model := device.NewModel(hw.backlight, hw.led, supervisor, maxBrightness)
	if refreshErr := model.Refresh(); refreshErr != nil {
		return fmt.Errorf("reading initial display state: %w", refreshErr)
	}
	if refreshErr := model.RefreshLED(); refreshErr != nil {
		return fmt.Errorf("reading initial led state: %w", refreshErr)
	}
	log.Info("hardware initialised",
		"simulated", cfg.Hardware.Simulated,
		"max_brightness", maxBrightness,
		"led", model.HasLED(),
		"motion", hw.motion != nil,
	)

	// Discovery document
	topics := mqtt.Topics{DeviceID: cfg.Device.ID}
	discovery, err := hass.BuildDiscovery(hass.DeviceInfo{
		ID:             cfg.Device.ID,
		Name:           cfg.Device.Name,
		UniqueIDPrefix: cfg.Device.UniqueIDPrefix,
		Origin:         cfg.Device.Origin,
		Manufacturer:   cfg.Device.Manufacturer,
		Model:          cfg.Device.Model,
	}, topics, maxBrightness, hass.Features{
		Motion: hw.motion != nil,
		LED:    model.HasLED(),
	}).Encode()
	if err != nil {
		return fmt.Errorf("encoding discovery document: %w", err)
	}

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Reconciliation loop
	opts := reconcile.Options{
		Model:               model,
		Thermometer:         hw.thermometer,
		Motion:              hw.motion,
		Publisher:           mqttClient,
		Topics:              topics,
		QoS:                 mqttClient.QoS(),
		Discovery:           discovery,
		TickInterval:        cfg.Reconcile.TickInterval,
		SensorIntervalTicks: cfg.Reconcile.SensorIntervalTicks,
		AnnounceMinInterval: cfg.Reconcile.AnnounceMinInterval,
		Logger:              log.With("component", "reconcile"),
	}
	if history != nil {
		opts.History = history
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	loop, err := reconcile.New(opts)
	if err != nil {
		return fmt.Errorf("creating reconciliation loop: %w", err)
	}

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, requesting announce")
		loop.RequestAnnounce()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if subErr := subscribe(mqttClient, loop, model.HasLED()); subErr != nil {
		return subErr
	}

	// Motion watcher
	if hw.motion != nil {
		if startErr := hw.motion.Start(loop.HandleMotion); startErr != nil {
			return fmt.Errorf("starting motion sensor: %w", startErr)
		}
	}

	// Status API (optional)
	if cfg.API.Enabled {
		apiDeps := api.Deps{
			Config:  cfg.API,
			Logger:  log.With("component", "api"),
			State:   loop,
			MQTT:    mqttClient,
			Version: version,
		}
		if history != nil {
			apiDeps.History = history
		}
		apiServer, apiErr := api.New(apiDeps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// Runs first on shutdown so no off-script outlives the bridge.
	defer func() {
		log.Info("terminating display transitions")
		supervisor.Shutdown()
	}()

	log.Info("Gray Logic Panel started successfully")

	if runErr := loop.Run(ctx); runErr != nil {
		return fmt.Errorf("reconciliation loop: %w", runErr)
	}

	log.Info("shutting down Gray Logic Panel")
	return nil
}

// getConfigPath returns the configuration file path: the -config flag,
// then the GRAYLOGIC_CONFIG environment variable, then the default.
func getConfigPath() string {
	if *configFlag != "" {
		return *configFlag
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openDatabase opens the history database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)
	return db, nil
}

// pruneHistory drops history older than the configured retention.
// Failure is logged; a large history is not a reason to refuse to start.
func pruneHistory(ctx context.Context, repo *device.SQLiteStateHistoryRepository, cfg *config.Config, log *logging.Logger) {
	if cfg.Database.HistoryRetention <= 0 {
		return
	}
	removed, err := repo.PruneHistory(ctx, cfg.Database.HistoryRetention)
	if err != nil {
		log.Warn("pruning state history failed", "error", err)
		return
	}
	log.Info("state history pruned",
		"removed", removed,
		"retention", cfg.Database.HistoryRetention,
	)
}

// connectInfluxDB returns a telemetry client, or nil when telemetry is
// disabled or unreachable.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil
	}
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without telemetry", "error", err)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}

// panelHardware groups the accessors for one panel. led and motion are
// nil when the panel has none.
type panelHardware struct {
	thermometer hardware.Thermometer
	backlight   hardware.Backlight
	led         hardware.LED
	motion      hardware.MotionSensor
	display     hardware.DisplayDriver
}

// hardwareFactory builds the panel accessors; tests replace it.
var hardwareFactory = buildHardware

// buildHardware selects sysfs/GPIO accessors or the in-memory simulation.
func buildHardware(cfg *config.Config, log *logging.Logger) (*panelHardware, error) {
	hc := cfg.Hardware

	if hc.Simulated {
		sim := hardware.NewSimulated(simulatedMaxBrightness)
		sim.SetOffDuration(simulatedOffDuration)
		hw := &panelHardware{
			thermometer: sim,
			backlight:   sim,
			led:         sim,
			display:     sim,
		}
		if hc.Motion.Enabled {
			hw.motion = sim
		}
		return hw, nil
	}

	display, err := hardware.NewCommandDisplay(
		hc.Display.OnCommand,
		hc.Display.OffCommand,
		hc.Display.Env,
		log.With("component", "display"),
	)
	if err != nil {
		return nil, err
	}

	hw := &panelHardware{
		thermometer: hardware.SysfsThermometer{Path: hc.ThermalPath},
		backlight:   hardware.SysfsBacklight{Dir: hc.BacklightDir},
		display:     display,
	}
	if hc.LEDDir != "" {
		hw.led = hardware.SysfsLED{Dir: hc.LEDDir}
	}
	if hc.Motion.Enabled {
		sensor, err := hardware.NewGPIOMotionSensor(hardware.GPIOMotionConfig{
			Chip:      hc.Motion.Chip,
			Line:      hc.Motion.Line,
			ActiveLow: hc.Motion.ActiveLow,
			PullUp:    hc.Motion.PullUp,
			Debounce:  cfg.MotionDebounce(),
		})
		if err != nil {
			return nil, err
		}
		hw.motion = sensor
	}
	return hw, nil
}

// subscribe routes command topics and the Home Assistant status topic to
// the loop. LED command topics are skipped on panels without an LED.
func subscribe(client *mqtt.Client, loop *reconcile.Loop, hasLED bool) error {
	topics := client.Topics()
	qos := client.QoS()

	subs := []string{topics.DisplaySet(), topics.BrightnessSet()}
	if hasLED {
		subs = append(subs, topics.LEDSet(), topics.LEDColorSet())
	}
	subs = append(subs, topics.HAStatus())

	for _, topic := range subs {
		if err := client.Subscribe(topic, qos, loop.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}
