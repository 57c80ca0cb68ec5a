// Command coldchain-sensor monitors a vaccine refrigerator: temperatures,
// door contact, and mains presence go through the decision core and the
// resulting events are published to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/coldchain-sensor/internal/clock"
	"github.com/sweeney/coldchain-sensor/internal/config"
	"github.com/sweeney/coldchain-sensor/internal/gpio"
	"github.com/sweeney/coldchain-sensor/internal/logic"
	"github.com/sweeney/coldchain-sensor/internal/metrics"
	"github.com/sweeney/coldchain-sensor/internal/monitor"
	"github.com/sweeney/coldchain-sensor/internal/mqtt"
	"github.com/sweeney/coldchain-sensor/internal/sensor"
	"github.com/sweeney/coldchain-sensor/internal/status"
	"github.com/sweeney/coldchain-sensor/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/coldchain-sensor/config.yaml", "Path to YAML config file")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config, \"off\" disables)")
	poll := flag.Duration("poll", 0, "Input polling interval (overrides config)")
	heartbeat := flag.Duration("heartbeat", -1, "Heartbeat interval (overrides config, 0 disables)")
	sensorMode := flag.String("sensor-mode", "", `Temperature source, "host" or "sim" (overrides config)`)
	printState := flag.Bool("print-state", false, "Print current input state and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
		if *httpAddr == "off" {
			cfg.HTTPAddr = ""
		}
	}
	if *poll > 0 {
		cfg.Poll = config.Duration(*poll)
	}
	if *heartbeat >= 0 {
		cfg.Heartbeat = config.Duration(*heartbeat)
	}
	if *sensorMode != "" {
		cfg.Sensor.Mode = *sensorMode
	}

	log := newLogger(cfg.Logging)

	if err := run(cfg, log, *printState); err != nil {
		log.WithError(err).Fatal("fatal")
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// daemon bundles the wired components so the loops can be exercised with
// fakes in tests.
type daemon struct {
	cfg     config.Config
	log     logrus.FieldLogger
	clk     *clock.Clock
	mon     *monitor.Monitor
	met     *metrics.Metrics
	inputs  gpio.Reader
	temps   sensor.Reader
	pub     mqtt.Publisher
	pubStat mqtt.ConnectionStatus
	tracker *status.Tracker

	doorDeb  *gpio.Debouncer
	powerDeb *gpio.Debouncer

	wallNow func() time.Time
}

func run(cfg config.Config, log *logrus.Logger, printState bool) error {
	inputs, err := newInputReader(cfg)
	if err != nil {
		return fmt.Errorf("init inputs: %w", err)
	}
	defer inputs.Close()

	if printState {
		doorOpen, powerPresent, err := inputs.Read()
		if err != nil {
			return fmt.Errorf("read inputs: %w", err)
		}
		fmt.Printf("door: %s, power: %s\n", doorString(doorOpen), powerString(powerPresent))
		return nil
	}

	temps, err := newSensorReader(cfg)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer temps.Close()

	clk := clock.New(clock.NewSystemTicks())
	if err := clk.SetWallClock(time.Now()); err != nil {
		log.WithError(err).Warn("initial wall-clock sync clamped")
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	mon := monitor.New(clk, monitor.Config{
		QueueSize: cfg.QueueSize,
		Ambient: logic.TemperatureConfig{
			Low:    cfg.Temperature.Ambient.Low,
			High:   cfg.Temperature.Ambient.High,
			Window: cfg.Temperature.Window,
		},
		Storage: logic.TemperatureConfig{
			Low:    cfg.Temperature.Storage.Low,
			High:   cfg.Temperature.Storage.High,
			Window: cfg.Temperature.Window,
		},
		InitialDoor:         logic.DoorClosed,
		InitialPower:        logic.PowerPresent,
		DoorAlarmThreshold:  cfg.Door.AlarmThreshold.Std(),
		PowerAlarmThreshold: cfg.Power.AlarmThreshold.Std(),
	}, log, met)

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Poll.Std().Milliseconds(),
		DebounceMs:  cfg.Door.Debounce.Std().Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Std().Milliseconds(),
		RecordMs:    cfg.RecordPeriod.Std().Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		SensorMode:  cfg.Sensor.Mode,
		AmbientLow:  cfg.Temperature.Ambient.Low,
		AmbientHigh: cfg.Temperature.Ambient.High,
		StorageLow:  cfg.Temperature.Storage.Low,
		StorageHigh: cfg.Temperature.Storage.High,
		WindowSize:  cfg.Temperature.Window,
	})
	tracker.SetClock(clk.Tracking(), time.Now())

	publisher, err := mqtt.NewRealPublisher(cfg.Broker, log)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  clk.Now(),
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTPAddr).Info("http status server listening")
	}

	log.WithFields(logrus.Fields{
		"poll":   cfg.Poll.Std(),
		"broker": cfg.Broker,
		"sensor": cfg.Sensor.Mode,
	}).Info("started")

	d := &daemon{
		cfg:      cfg,
		log:      log,
		clk:      clk,
		mon:      mon,
		met:      met,
		inputs:   inputs,
		temps:    temps,
		pub:      publisher,
		pubStat:  publisher,
		tracker:  tracker,
		doorDeb:  gpio.NewDebouncer(cfg.Door.Debounce.Std()),
		powerDeb: gpio.NewDebouncer(cfg.Power.Debounce.Std()),
		wallNow:  time.Now,
	}

	pollTicker := time.NewTicker(cfg.Poll.Std())
	defer pollTicker.Stop()
	heartbeatC := maybeTicker(cfg.Heartbeat.Std())
	recordC := maybeTicker(cfg.RecordPeriod.Std())
	syncC := maybeTicker(cfg.WallClockSync.Std())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(ctx) })
	g.Go(func() error { return d.drainEvents(ctx) })
	g.Go(func() error {
		defer cancel()
		return d.runLoop(ctx, pollTicker.C, heartbeatC, recordC, syncC, sigCh)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// maybeTicker returns a ticker channel, or nil (which never fires in a
// select) when the interval is zero.
func maybeTicker(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	return time.NewTicker(d).C
}

func newInputReader(cfg config.Config) (gpio.Reader, error) {
	if cfg.Sensor.Mode == "sim" {
		// Door closed, power present, forever.
		return gpio.NewFakeReader([]gpio.Sample{{DoorOpen: false, PowerPresent: true}}), nil
	}
	return gpio.NewRealReader(cfg.Door.Pin, cfg.Power.Pin)
}

func newSensorReader(cfg config.Config) (sensor.Reader, error) {
	if cfg.Sensor.Mode == "sim" {
		return sensor.NewSimReader(time.Now().UnixNano()), nil
	}
	return sensor.NewHostReader(cfg.Sensor.AmbientKey, cfg.Sensor.StorageKey)
}

// runLoop owns the tickers and the signal handler. Inbound sensor data is
// produced here; events are consumed by drainEvents so a full outbound
// queue can never wedge the polling path.
func (d *daemon) runLoop(ctx context.Context, tick, heartbeatC, recordC, syncC <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case s := <-sig:
			d.log.WithField("signal", s).Info("shutting down")
			d.publishShutdown(signalName(s))
			return nil

		case <-tick:
			d.pollOnce(ctx)

		case <-heartbeatC:
			d.publishHeartbeat()

		case <-recordC:
			d.publishRecord()

		case <-syncC:
			d.syncClock()
		}
	}
}

// pollOnce reads both hardware shims and feeds the core queues.
func (d *daemon) pollOnce(ctx context.Context) {
	at := d.clk.Now()

	doorOpen, powerPresent, err := d.inputs.Read()
	if err != nil {
		d.log.WithError(err).Warn("input read error")
	} else {
		if level, changed := d.doorDeb.Sample(doorOpen, at); changed {
			pos := logic.DoorClosed
			if level {
				pos = logic.DoorOpen
			}
			d.send(ctx, func() { d.mon.DoorEdges() <- logic.DoorEdge{Position: pos, At: at} })
		}
		if level, changed := d.powerDeb.Sample(powerPresent, at); changed {
			st := logic.PowerAbsent
			if level {
				st = logic.PowerPresent
			}
			d.send(ctx, func() { d.mon.PowerEdges() <- logic.PowerEdge{Status: st, At: at} })
		}
	}

	ambient, storage, err := d.temps.Read()
	if err != nil {
		d.log.WithError(err).Warn("sensor read error")
	} else {
		d.send(ctx, func() {
			d.mon.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelAmbient, Value: ambient, At: at}
		})
		d.send(ctx, func() {
			d.mon.Temperatures() <- logic.TemperatureSample{Channel: logic.ChannelStorage, Value: storage, At: at}
		})
	}

	// Keep the status endpoint current even between events.
	d.refreshTracker()
}

// send performs a queue send unless the context is already canceled.
func (d *daemon) send(ctx context.Context, f func()) {
	if ctx.Err() != nil {
		return
	}
	f()
}

// drainEvents forwards core events to MQTT and keeps the status tracker
// current.
func (d *daemon) drainEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.mon.Events():
			d.log.WithFields(logrus.Fields{
				"type": ev.Type,
				"at":   ev.Timestamp,
			}).Info("event")
			d.met.Events.WithLabelValues(string(ev.Type)).Inc()
			if err := d.pub.Publish(ev); err != nil {
				d.log.WithError(err).Warn("publish error")
				d.met.PublishFailures.Inc()
			}
			d.refreshTracker()
		}
	}
}

func (d *daemon) refreshTracker() {
	d.tracker.Update(d.mon.Snapshot())
	if d.pubStat != nil {
		buffered := 0
		if bc, ok := d.pubStat.(interface{ Buffered() int }); ok {
			buffered = bc.Buffered()
		}
		d.tracker.SetMQTT(d.pubStat.IsConnected(), buffered)
	}
}

func (d *daemon) publishHeartbeat() {
	d.refreshTracker()
	snap := d.tracker.Snapshot()
	d.log.WithFields(logrus.Fields{
		"uptime":     snap.Uptime().Truncate(time.Second),
		"door":       snap.State.Door.Position,
		"power":      snap.State.Power.Status,
		"storage":    snap.State.Storage.Last,
		"excursions": snap.State.Storage.ExcursionCount,
	}).Info("heartbeat")

	hb := mqtt.SystemEvent{
		Timestamp:  d.clk.Now(),
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := d.pub.PublishSystem(hb); err != nil {
		d.log.WithError(err).Warn("heartbeat publish error")
		d.met.PublishFailures.Inc()
	}
}

func (d *daemon) publishRecord() {
	rec := d.mon.FinalizeRecords()
	d.log.WithFields(logrus.Fields{
		"at":         rec.At,
		"open_count": rec.Door.OpenCount,
		"outages":    rec.Power.OutageCount,
	}).Info("period record finalized")
	if err := d.pub.PublishRecord(rec); err != nil {
		d.log.WithError(err).Warn("record publish error")
		d.met.PublishFailures.Inc()
	}
}

func (d *daemon) syncClock() {
	now := d.wallNow()
	if err := d.clk.SetWallClock(now); err != nil {
		d.log.WithField("wall", now).Warn("wall-clock sync clamped to preserve monotonicity")
		d.met.ClockRegressions.Inc()
	}
	d.tracker.SetClock(d.clk.Tracking(), now)
}

func (d *daemon) publishShutdown(reason string) {
	d.refreshTracker()
	snap := d.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  d.clk.Now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := d.pub.PublishSystem(event); err != nil {
		d.log.WithError(err).Warn("failed to publish shutdown event")
	} else {
		d.log.Info("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func doorString(open bool) string {
	if open {
		return "OPEN"
	}
	return "CLOSED"
}

func powerString(present bool) string {
	if present {
		return "PRESENT"
	}
	return "ABSENT"
}
