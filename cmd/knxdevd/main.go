// knxdevd runs a KNX System-7 device: the TPUART/NCN5120 link driver,
// the L3/L4/L7 protocol stack, the device object model built from the
// configuration document, sqlite persistence for memory segments and
// device events, and the optional MQTT/InfluxDB telemetry sinks and
// diagnostics API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/basilfx/knx-devstack/internal/diagnostics"
	"github.com/basilfx/knx-devstack/internal/etsimport"
	"github.com/basilfx/knx-devstack/internal/infrastructure/logging"
	"github.com/basilfx/knx-devstack/internal/knx/l3"
	"github.com/basilfx/knx-devstack/internal/knx/l4"
	"github.com/basilfx/knx-devstack/internal/knx/l7"
	"github.com/basilfx/knx-devstack/internal/knx/netdev"
	"github.com/basilfx/knx-devstack/internal/knx/transceiver"
	"github.com/basilfx/knx-devstack/internal/knxconfig"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
	"github.com/basilfx/knx-devstack/internal/knxdevice/store"
	"github.com/basilfx/knx-devstack/internal/knxsupervisor"
	telemetrymqtt "github.com/basilfx/knx-devstack/internal/telemetry/mqtt"
	"github.com/basilfx/knx-devstack/internal/telemetry/tsdb"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither the -config flag nor the
// environment variable names a configuration file.
const defaultConfigPath = "config.yaml"

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	fmt.Printf("knxdevd %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, getConfigPath(*configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath resolves the configuration file path: the -config flag
// wins, then the KNXDEVSTACK_CONFIG environment variable, then the
// default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("KNXDEVSTACK_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for
// testability.
func run(ctx context.Context, configPath string) error {
	cfg, err := knxconfig.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting knxdevd", "config", configPath)

	// Device object model from the static tables (or an ETS export).
	device, err := knxconfig.BuildDevice(&cfg.Device)
	if err != nil {
		return err
	}
	if path := cfg.Device.Tables.ETSExport; path != "" {
		if err := importETSExport(path, device, cfg.Device.Tables.AssocLimit, logger); err != nil {
			return err
		}
	}

	// Persistence: restore segment snapshots from the previous run, then
	// record every device event from here on.
	st, err := store.Open(ctx, store.Config{Path: cfg.Storage.SQLitePath})
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck // best-effort close on the way out

	if err := st.RestoreSegments(ctx, &device.Memory); err != nil {
		return err
	}

	// Link driver on the configured serial port.
	var driver *transceiver.Driver
	var port io.Closer
	linkLogger := logger.With("component", "link")
	switch cfg.Link.Variant {
	case "ncn5120":
		driver, port, err = transceiver.DialNCN5120(cfg.Link.Port, linkLogger)
	default:
		driver, port, err = transceiver.DialTPUART(cfg.Link.Port, linkLogger)
	}
	if err != nil {
		return err
	}
	defer port.Close() //nolint:errcheck // best-effort close on the way out

	// Protocol layers.
	frames := netdev.New(driver)
	network := l3.NewLayer(l3.Interface{Address: device.Address, Device: frames})
	transport := l4.NewLayer()
	app := l7.NewLayer(device)

	stack := knxsupervisor.NewStack(frames, network, transport, app, logger.With("component", "stack"))

	// Event observers: durable event log, lazy segment snapshots, and the
	// optional telemetry sinks.
	callbacks := []knxdevice.EventCallback{
		store.EventRecorder(ctx, st, func(err error) {
			logger.Warn("event log write failed", "error", err)
		}),
		segmentSaver(ctx, st, logger),
	}

	mqttSink, mqttClient, err := setupMQTT(ctx, cfg, device, app, logger)
	if err != nil {
		return err
	}
	if mqttSink != nil {
		defer mqttClient.Close()
		callbacks = append(callbacks, mqttSink.HandleEvent)
	}

	tsdbSink, tsdbClient, err := setupTSDB(ctx, cfg, device, logger)
	if err != nil {
		return err
	}
	if tsdbSink != nil {
		defer tsdbClient.Close()
		callbacks = append(callbacks, tsdbSink.HandleEvent)
	}

	device.OnEvent = knxdevice.FanoutEvents(callbacks...)

	// Workers: the link driver's read loop, the protocol stack tasks, and
	// the optional diagnostics server.
	sup := knxsupervisor.New(logger.With("component", "supervisor"))

	// Run is single-shot per Driver (it owns and closes the event
	// channel), so the worker must not be restarted.
	sup.Go(ctx, knxsupervisor.Worker{
		Name:               "link",
		Run:                driver.Run,
		MaxRestartAttempts: 1,
	})
	stack.Run(ctx, sup)

	if cfg.Diagnostics.Enabled {
		server := diagnostics.New(diagnostics.Deps{
			Config: cfg.Diagnostics,
			Logger: logger.With("component", "diagnostics"),
			Device: device,
			Writer: app,
			Events: st,
		})
		stack.AddTap(server.Monitor().Tap)
		sup.Go(ctx, knxsupervisor.Worker{Name: "diagnostics", Run: server.Start})
	}

	// Bring the transceiver up once the read loop is running.
	if err := driver.Reset(ctx); err != nil {
		return fmt.Errorf("resetting transceiver: %w", err)
	}
	if err := driver.SetAddress(ctx, uint16(device.Address)); err != nil {
		return fmt.Errorf("setting transceiver address: %w", err)
	}

	logger.Info("knxdevd running", "address", device.Address.FormatPhysical())

	<-ctx.Done()
	logger.Info("shutdown signal received")

	sup.Wait()
	logger.Info("knxdevd stopped")
	return nil
}

// importETSExport replaces the device's association table with the
// contents of an ETS group-address CSV export.
func importETSExport(path string, device *knxdevice.Device, limit int, logger *logging.Logger) error {
	f, err := os.Open(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return fmt.Errorf("opening ETS export: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	result, err := etsimport.ParseCSV(f)
	if err != nil {
		return err
	}
	for _, rowErr := range result.Errors {
		logger.Warn("ETS export row skipped", "line", rowErr.Line, "error", rowErr.Err)
	}
	if err := result.Apply(device, limit); err != nil {
		return err
	}

	logger.Info("ETS export imported",
		"path", path,
		"rows", len(result.Rows),
		"skipped", len(result.Errors),
	)
	return nil
}

// segmentSaver snapshots non-volatile memory segments after every
// successful write, clearing the modified flag once persisted.
func segmentSaver(ctx context.Context, st *store.Store, logger *logging.Logger) knxdevice.EventCallback {
	return func(_ *knxdevice.Device, event knxdevice.Event) {
		write, ok := event.(knxdevice.MemWriteEvent)
		if !ok || write.Segment == nil {
			return
		}
		if write.Segment.Kind == knxdevice.RAM {
			return
		}
		if err := st.SaveSegment(ctx, write.Segment); err != nil {
			logger.Warn("segment snapshot failed",
				"start_addr", write.Segment.StartAddr,
				"error", err,
			)
			return
		}
		write.Segment.Flags.Modified = false
	}
}

// setupMQTT connects the MQTT sink when enabled; a disabled section
// returns nils without error.
func setupMQTT(ctx context.Context, cfg *knxconfig.Config, device *knxdevice.Device, app *l7.Layer, logger *logging.Logger) (*telemetrymqtt.Sink, *telemetrymqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		return nil, nil, nil
	}

	client, err := telemetrymqtt.Connect(cfg.MQTT, logger.With("component", "mqtt"))
	if err != nil {
		return nil, nil, err
	}

	sink := telemetrymqtt.NewSink(client, device, app, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger.With("component", "mqtt"))
	if err := sink.Start(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return sink, client, nil
}

// setupTSDB connects the InfluxDB sink when enabled; a disabled section
// returns nils without error.
func setupTSDB(ctx context.Context, cfg *knxconfig.Config, device *knxdevice.Device, logger *logging.Logger) (*tsdb.Sink, *tsdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		return nil, nil, nil
	}

	client, err := tsdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, nil, err
	}
	client.SetOnError(func(err error) {
		logger.Warn("influxdb write failed", "error", err)
	})

	return tsdb.NewSink(client, device, cfg.InfluxDB.Measurement), client, nil
}
