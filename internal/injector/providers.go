package injector

import (
	"crypto/tls"
	"fmt"

	"github.com/google/wire"

	"github.com/zeusync/hitsense/internal/bridge"
	"github.com/zeusync/hitsense/internal/config"
	"github.com/zeusync/hitsense/internal/core/contact"
	"github.com/zeusync/hitsense/internal/core/events/bus"
	"github.com/zeusync/hitsense/internal/core/impact"
	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/observability/metrics"
	"github.com/zeusync/hitsense/internal/core/restoring"
	"github.com/zeusync/hitsense/internal/core/system"
	"github.com/zeusync/hitsense/internal/core/thresholds"
)

// ProviderSet assembles the daemon from its settings.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideBus,
	ProvideStore,
	ProvideLoader,
	ProvideWorld,
	ProvideDetector,
	ProvideMachine,
	ProvideRestoring,
	ProvideHub,
	ProvideServer,
	ProvideQUIC,
	ProvideRunner,
	wire.Struct(new(Daemon), "*"),
)

func ProvideLogger(s *config.Settings) log.Log {
	return log.New(log.ParseLevel(s.LogLevel))
}

func ProvideMetrics() (*metrics.Recorder, error) {
	return metrics.New()
}

func ProvideBus(rec *metrics.Recorder) bus.EventBus {
	b := bus.New()
	b.AddObserver(rec)
	return b
}

func ProvideStore() *thresholds.Store {
	return thresholds.NewStore(nil)
}

func ProvideLoader(s *config.Settings, store *thresholds.Store, logger log.Log, rec *metrics.Recorder) *thresholds.Loader {
	return thresholds.NewLoader(s.Thresholds.Path, store, logger, rec)
}

func ProvideWorld(s *config.Settings) *bridge.World {
	return bridge.NewWorld(s.Bridge.MaxCollisions)
}

// ProvideDetector tracks every configured foot.
func ProvideDetector(s *config.Settings, world *bridge.World, logger log.Log, rec *metrics.Recorder) *impact.Detector {
	d := impact.NewDetector(logger, impact.WithMetrics(rec))
	for _, name := range s.Feet {
		d.Attach(world.Register(name))
	}
	return d
}

// ProvideMachine registers the drumsticks and zone colliders.
func ProvideMachine(s *config.Settings, world *bridge.World, logger log.Log, rec *metrics.Recorder) (*contact.Machine, error) {
	reg := contact.NewRegistry()
	for _, st := range s.Sticks {
		if err := reg.AddBody(world.Register(st.Name), world.Register(st.Parent)); err != nil {
			return nil, fmt.Errorf("stick %s: %w", st.Name, err)
		}
	}
	for _, z := range s.Zones {
		if err := reg.AddZone(world.Register(z.Collider), contact.Zone(z.Zone)); err != nil {
			return nil, fmt.Errorf("zone collider %s: %w", z.Collider, err)
		}
	}
	return contact.NewMachine(reg, logger, contact.WithMetrics(rec)), nil
}

// ProvideRestoring binds each drumstick to its grip.
func ProvideRestoring(s *config.Settings, world *bridge.World, logger log.Log) *restoring.System {
	sys := restoring.NewSystem(s.Spring.Spring())
	for _, st := range s.Sticks {
		sys.Bind(world.Register(st.Name), world.Register(st.Parent))
	}
	logger.Debug("restoring springs bound", log.Int("bodies", sys.Len()))
	return sys
}

func ProvideHub(world *bridge.World, b bus.EventBus, logger log.Log) (*bridge.Hub, error) {
	hub := bridge.NewHub(world, logger)
	if err := hub.Attach(b); err != nil {
		return nil, err
	}
	return hub, nil
}

func ProvideServer(s *config.Settings, world *bridge.World, hub *bridge.Hub, logger log.Log) *bridge.Server {
	return bridge.NewServer(s.Bridge.HTTPAddr, world, hub, logger, bridge.WithSendBuffer(s.Bridge.SendBuffer))
}

// ProvideQUIC returns nil when the QUIC ingest is disabled.
func ProvideQUIC(s *config.Settings, world *bridge.World, logger log.Log) (*bridge.QUICIngest, error) {
	if !s.Bridge.QUICEnabled {
		return nil, nil
	}
	var tlsConf *tls.Config
	if s.Bridge.CertFile != "" {
		var err error
		if tlsConf, err = bridge.LoadTLSConfig(s.Bridge.CertFile, s.Bridge.KeyFile); err != nil {
			return nil, err
		}
	}
	return bridge.NewQUICIngest(s.Bridge.QUICAddr, tlsConf, world, logger), nil
}

// ProvideRunner wires the tick stages to the bridge world and appends the
// force flush as the last stage.
func ProvideRunner(
	s *config.Settings,
	world *bridge.World,
	loader *thresholds.Loader,
	detector *impact.Detector,
	machine *contact.Machine,
	rest *restoring.System,
	b bus.EventBus,
	server *bridge.Server,
	logger log.Log,
) (*system.Runner, error) {
	r := system.NewRunner(system.Components{
		Poses:      world,
		Collisions: world,
		Forces:     world,
		Parenting:  world,
		Loader:     loader,
		Detector:   detector,
		Machine:    machine,
		Restoring:  rest,
		Bus:        b,
	}, logger, system.WithRate(s.TickRate))
	if err := r.Add(server.FlushStage()); err != nil {
		return nil, err
	}
	server.SetStatus(r)
	return r, nil
}
