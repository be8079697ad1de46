// Boom Gate Core daemon.
//
// Wires the gate state machine, sound timeline, sequencer and trigger
// dispatcher to their transports: HTTP/WebSocket control channel, MQTT
// payment trigger and state topic, SQLite audit trail, and optional
// InfluxDB transition telemetry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/boomgate-core/internal/api"
	"github.com/nerrad567/boomgate-core/internal/audit"
	"github.com/nerrad567/boomgate-core/internal/dispatch"
	"github.com/nerrad567/boomgate-core/internal/gate"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/config"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/database"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/boomgate-core/internal/payment"
	"github.com/nerrad567/boomgate-core/internal/sequence"
	"github.com/nerrad567/boomgate-core/internal/sound"
	"github.com/nerrad567/boomgate-core/internal/status"
)

// Build-time variables set via ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "boomgate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting boomgate core",
		"version", version,
		"build_time", buildTime,
		"gate_id", cfg.Gate.ID,
	)

	// Database and audit trail.
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Gate core: machine, timeline, player, sequencer, dispatcher.
	machine := gate.NewMachine(cfg.Gate.ID, cfg.Sound.Enabled)
	machine.SetLogger(logger.With("component", "gate"))

	var player sound.Player
	if cfg.Sound.ClipDir != "" {
		player = sound.NewFilePlayer(cfg.Sound.ClipDir, logger.With("component", "sound"))
	} else {
		player = sound.NullPlayer{}
	}

	runner := sequence.NewRunner(machine, sound.NewTimeline(), player, sequence.TimingsFromConfig(cfg.Gate))
	runner.SetLogger(logger.With("component", "sequence"))

	defaultOpen := time.Duration(cfg.Gate.DefaultOpenDurationSeconds * float64(time.Second))
	dispatcher := dispatch.New(machine, runner, defaultOpen)
	dispatcher.SetLogger(logger.With("component", "dispatch"))
	dispatcher.SetAuditRecorder(auditRepo)

	// Observer fan-out. The broadcaster feeds WebSocket clients; the
	// optional transport publishers ride the same Tee.
	broadcaster := status.NewBroadcaster(machine, logger.With("component", "status"))
	publishers := status.Tee{broadcaster}

	// MQTT: payment trigger in, retained gate state out.
	var mqttClient *mqtt.Client
	var paymentTrigger *payment.Trigger
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to mqtt broker: %w", err)
		}
		defer mqttClient.Close()
		mqttClient.SetLogger(logger.With("component", "mqtt"))

		publishers = append(publishers, newMQTTStatePublisher(mqttClient, logger.With("component", "mqtt")))

		paymentTrigger = payment.NewTrigger(mqttClient, dispatcher, logger.With("component", "payment"))
		if err := paymentTrigger.Start(); err != nil {
			return fmt.Errorf("starting payment trigger: %w", err)
		}
		defer paymentTrigger.Stop()
	} else {
		logger.Info("mqtt disabled, payment trigger inactive")
	}

	// Optional transition telemetry.
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case err == nil:
		defer influxClient.Close()
		publishers = append(publishers, &influxPublisher{client: influxClient})
	case errors.Is(err, influxdb.ErrDisabled):
		logger.Debug("influxdb telemetry disabled")
	default:
		// Telemetry is best-effort; the gate runs without it.
		logger.Warn("influxdb unavailable, telemetry disabled", "error", err)
	}

	machine.SetPublisher(publishers)

	// HTTP API and WebSocket control channel.
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      logger.With("component", "api"),
		Dispatcher:  dispatcher,
		Broadcaster: broadcaster,
		AuditRepo:   auditRepo,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	server.Start(ctx)
	defer server.Close()

	logger.Info("boomgate core running",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"position", machine.Position(),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Preempt any in-flight sequence so the deferred closers do not
	// race a moving gate.
	dispatcher.Submit(context.Background(), dispatch.Request{
		Command: dispatch.CmdEmergencyStop,
		Source:  dispatch.SourceControlChannel,
	})

	return nil
}

// getConfigPath returns the config file path from args, env, or default.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if path := os.Getenv("BOOMGATE_CONFIG"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

// retainedPublisher is the broker surface the state publisher needs.
type retainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// mqttStatePublisher publishes each snapshot to the retained gate state
// topic so late subscribers see the current position immediately.
//
// A single worker drains a drop-oldest buffer, so the retained topic is
// always written in snapshot order and never holds a stale position
// behind a newer one. The most recent state wins, same as the status
// observers.
type mqttStatePublisher struct {
	client retainedPublisher
	logger *logging.Logger
	queue  chan gate.Snapshot
}

func newMQTTStatePublisher(client retainedPublisher, logger *logging.Logger) *mqttStatePublisher {
	p := &mqttStatePublisher{
		client: client,
		logger: logger,
		queue:  make(chan gate.Snapshot, 16),
	}
	go p.run()
	return p
}

// Publish implements gate.Publisher. Called under the machine lock, so
// it must not block: the snapshot is handed to the worker, dropping the
// oldest queued entry if the broker cannot keep up.
func (p *mqttStatePublisher) Publish(snap gate.Snapshot) {
	select {
	case p.queue <- snap:
	default:
		select {
		case <-p.queue:
		default:
		}
		select {
		case p.queue <- snap:
		default:
		}
	}
}

// run publishes queued snapshots one at a time, in arrival order.
func (p *mqttStatePublisher) run() {
	for snap := range p.queue {
		payload, err := json.Marshal(snap)
		if err != nil {
			p.logger.Error("marshalling gate state", "error", err)
			continue
		}
		topic := mqtt.Topics{}.GateState(snap.GateID)
		if err := p.client.PublishRetained(topic, payload); err != nil {
			p.logger.Warn("publishing gate state failed", "topic", topic, "error", err)
		}
	}
}

// influxPublisher writes one telemetry point per published snapshot.
type influxPublisher struct {
	client *influxdb.Client
}

// Publish implements gate.Publisher. The write API batches
// asynchronously, so this never blocks the machine.
func (p *influxPublisher) Publish(snap gate.Snapshot) {
	p.client.WriteGateTransition(snap.GateID, string(snap.Position), snap.SequenceVersion)
}
