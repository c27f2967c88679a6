package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kilianp07/factoryccu/api/jobs"
	"github.com/kilianp07/factoryccu/config"
	"github.com/kilianp07/factoryccu/core/dispatch"
	"github.com/kilianp07/factoryccu/core/dispatch/history"
	"github.com/kilianp07/factoryccu/core/flows"
	"github.com/kilianp07/factoryccu/core/jobstatus"
	coremetrics "github.com/kilianp07/factoryccu/core/metrics"
	"github.com/kilianp07/factoryccu/core/model"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
	coremqtt "github.com/kilianp07/factoryccu/core/mqtt"
	"github.com/kilianp07/factoryccu/core/readiness"
	"github.com/kilianp07/factoryccu/core/reservation"
	"github.com/kilianp07/factoryccu/core/routing"
	"github.com/kilianp07/factoryccu/infra/layoutfile"
	"github.com/kilianp07/factoryccu/infra/logger"
	"github.com/kilianp07/factoryccu/infra/metrics"
	"github.com/kilianp07/factoryccu/infra/monitoring"
	"github.com/kilianp07/factoryccu/infra/mqtt"
	"github.com/kilianp07/factoryccu/internal/eventbus"
)

const (
	inboxSize   = 256
	eventBuffer = 64
)

type inbound struct {
	topic   string
	payload []byte
}

// Service wires the dispatch core to the device bus and serialises every
// inbound message through a single event loop.
type Service struct {
	cfg    *config.Config
	client coremqtt.Client
	topics mqtt.Topics
	pub    *mqtt.Publisher
	log    logger.Logger

	modules  *readiness.ModuleTracker
	vehicles *readiness.VehicleTracker
	arbiter  *reservation.Arbiter
	ledger   *routing.MemoryLedger
	planner  *routing.Planner
	flows    *flows.MemoryProvider
	Engine   *dispatch.Engine

	status  jobstatus.Store
	history history.Store
	sink    coremetrics.MetricsSink
	bus     *eventbus.Bus

	inbox      chan inbound
	dropped    atomic.Uint64
	disconnect func()
	now        func() time.Time
}

// New creates a Service from the configuration and connects to the broker.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	logger.SetFile(logger.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	svc, err := newService(cfg, client)
	if err != nil {
		client.Disconnect()
		return nil, err
	}
	svc.disconnect = client.Disconnect
	return svc, nil
}

func newService(cfg *config.Config, client coremqtt.Client) (*Service, error) {
	log := logger.New("service")

	layout, err := layoutfile.LoadLayout(cfg.Layout.Path)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	graph, err := layout.Graph()
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	flowSet := flows.Set{}
	if cfg.Flows.Path != "" {
		if flowSet, err = layoutfile.LoadFlows(cfg.Flows.Path); err != nil {
			return nil, fmt.Errorf("flows: %w", err)
		}
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := history.NewStore(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		client:   client,
		topics:   mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix},
		log:      log,
		modules:  readiness.NewModuleTracker(logger.New("module_tracker")),
		vehicles: readiness.NewVehicleTracker(cfg.Dispatch.MinBatteryPercent, logger.New("vehicle_tracker")),
		ledger:   routing.NewMemoryLedger(),
		flows:    flows.NewMemoryProvider(flowSet),
		status:   jobstatus.NewMemoryStore(),
		history:  store,
		sink:     sink,
		bus:      eventbus.New(eventbus.WithBuffer(eventBuffer)),
		inbox:    make(chan inbound, inboxSize),
		now:      time.Now,
	}
	s.pub = mqtt.NewPublisher(client, s.topics, s.family)
	s.arbiter = reservation.NewArbiter(cfg.Warehouses, s.modules, s.vehicles, logger.New("reservation"))
	s.planner = routing.NewPlanner(graph, s.ledger, logger.New("route_planner"))
	s.registerModules(graph)

	eng, err := dispatch.NewEngine(cfg.Dispatch, s.modules, s.vehicles, s.arbiter, s.planner, s.flows, s.pub, logger.New("dispatch_engine"))
	if err != nil {
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}
	eng.SetEventBus(s.bus)
	eng.SetMetricsSink(sink)
	eng.SetHistoryStore(store)
	s.Engine = eng
	return s, nil
}

// registerModules creates a disconnected record for every module of the
// layout so its type is known before the first connection report.
func (s *Service) registerModules(g *routing.Graph) {
	for _, n := range g.Nodes() {
		if n.IsModule() {
			if _, ok := s.modules.Module(n.ModuleSerial); !ok {
				s.modules.UpdateConnection(n.ModuleSerial, n.ModuleType, false)
			}
		}
	}
}

// family resolves the topic family of a device serial number.
func (s *Service) family(serial string) string {
	if _, ok := s.vehicles.Vehicle(serial); ok {
		return mqtt.FamilyVehicle
	}
	return mqtt.FamilyModule
}

// Subscribe registers the device and controller topics. Messages are queued
// for the event loop started by Run.
func (s *Service) Subscribe() error {
	subs := map[string]string{
		s.topics.AllConnections(mqtt.FamilyModule):  coremqtt.ClassState,
		s.topics.AllConnections(mqtt.FamilyVehicle): coremqtt.ClassState,
		s.topics.AllStates(mqtt.FamilyModule):       coremqtt.ClassState,
		s.topics.AllStates(mqtt.FamilyVehicle):      coremqtt.ClassState,
		s.topics.OrderRequest():                     coremqtt.ClassRequest,
		s.topics.OrderCancel():                      coremqtt.ClassRequest,
		s.topics.SetLayout():                        coremqtt.ClassRequest,
		s.topics.SetFlows():                         coremqtt.ClassRequest,
		s.topics.SetConfig():                        coremqtt.ClassRequest,
		s.topics.SetReset():                         coremqtt.ClassRequest,
	}
	for topic, class := range subs {
		if err := s.client.Subscribe(topic, class, s.enqueue); err != nil {
			return err
		}
	}
	return nil
}

// enqueue hands a message to the event loop. It runs on the MQTT client's
// delivery goroutine and must not block it: the event loop waits on publish
// acknowledgements routed through that goroutine. A message arriving while
// the inbox is full is dropped. Devices repeat their state reports.
func (s *Service) enqueue(topic string, payload []byte) {
	select {
	case s.inbox <- inbound{topic: topic, payload: payload}:
	default:
		n := s.dropped.Add(1)
		s.log.Warnf("inbox full, dropped message on %s (%d dropped)", topic, n)
	}
}

// Dropped returns the number of inbound messages discarded on a full inbox.
func (s *Service) Dropped() uint64 { return s.dropped.Load() }

// Routes returns the HTTP handlers served next to /metrics.
func (s *Service) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"/api/jobs":         jobs.NewStatusHandler(s.status),
		"/api/jobs/history": jobs.NewHistoryHandler(s.history, s.cfg.HTTP.Token),
	}
}

// Run subscribes to the bus and processes inbound messages one at a time
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer coremon.Recover()
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	coremon.Go(func() {
		if err := metrics.StartServer(ctx, s.cfg.HTTP.Addr, s.Routes(), s.log); err != nil {
			s.log.Errorf("http server: %v", err)
		}
	})
	if err := s.Subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.publishPairing(ctx)
	s.Engine.TriggerPending(ctx)
	s.log.Infof("factory controller running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.inbox:
			s.handle(ctx, msg.topic, msg.payload)
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if d := s.bus.Dropped(); d > 0 {
		s.log.Warnf("%d metric events dropped", d)
	}
	if d := s.Dropped(); d > 0 {
		s.log.Warnf("%d inbound messages dropped", d)
	}
	err := s.history.Close()
	if s.disconnect != nil {
		s.disconnect()
	}
	coremon.Flush(2 * time.Second)
	return err
}

func (s *Service) publishPairing(ctx context.Context) {
	snap := model.PairingSnapshot{Modules: s.modules.All(), Vehicles: s.vehicles.All(), Timestamp: s.now()}
	if err := s.pub.PublishPairing(ctx, snap); err != nil {
		s.log.Warnf("publish pairing state: %v", err)
	}
}

// syncStatus refreshes the read model behind the status API.
func (s *Service) syncStatus() {
	s.status.Sync(append(s.Engine.Jobs(), s.Engine.Completed()...))
}
