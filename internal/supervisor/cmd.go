package supervisor

import (
	"context"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/worker"
)

// ConfigUpdateKind discriminates the three config-mutating commands
// (spec §6).
type ConfigUpdateKind int

const (
	ConfigUpdateAdd ConfigUpdateKind = iota
	ConfigUpdateRemove
	ConfigUpdateUpdate
)

// ConfigUpdate is the payload of a command's UpdateConfig variant.
type ConfigUpdate struct {
	Kind    ConfigUpdateKind
	Chain   config.ChainConfig
	ChainID ibc.ChainID
}

// AddChain builds an Add ConfigUpdate.
func AddChain(cc config.ChainConfig) ConfigUpdate { return ConfigUpdate{Kind: ConfigUpdateAdd, Chain: cc} }

// RemoveChain builds a Remove ConfigUpdate.
func RemoveChain(id ibc.ChainID) ConfigUpdate {
	return ConfigUpdate{Kind: ConfigUpdateRemove, ChainID: id}
}

// UpdateChain builds an Update ConfigUpdate (remove-then-add).
func UpdateChain(cc config.ChainConfig) ConfigUpdate {
	return ConfigUpdate{Kind: ConfigUpdateUpdate, Chain: cc, ChainID: cc.ID}
}

// CmdEffect reports whether a command changed the subscription set.
type CmdEffect int

const (
	CmdEffectNothing CmdEffect = iota
	CmdEffectConfigChanged
)

// joinEffect returns the dominant effect: ConfigChanged dominates
// Nothing (spec §4.6, Update's "join of the two effects").
func joinEffect(a, b CmdEffect) CmdEffect {
	if a == CmdEffectConfigChanged || b == CmdEffectConfigChanged {
		return CmdEffectConfigChanged
	}
	return CmdEffectNothing
}

// CmdKind discriminates SupervisorCmd variants.
type CmdKind int

const (
	CmdUpdateConfig CmdKind = iota
	CmdDumpState
)

// SupervisorCmd is the command channel payload (spec §6).
type SupervisorCmd struct {
	Kind    CmdKind
	Update  ConfigUpdate
	ReplyCh chan<- SupervisorState
}

// NewUpdateConfigCmd builds an UpdateConfig command.
func NewUpdateConfigCmd(u ConfigUpdate) SupervisorCmd {
	return SupervisorCmd{Kind: CmdUpdateConfig, Update: u}
}

// NewDumpStateCmd builds a DumpState command whose reply is sent on
// replyCh. The reply is dropped silently if the receiver is gone
// (spec §4.6).
func NewDumpStateCmd(replyCh chan<- SupervisorState) SupervisorCmd {
	return SupervisorCmd{Kind: CmdDumpState, ReplyCh: replyCh}
}

func (s *Supervisor) handleCmd(ctx context.Context, cmd SupervisorCmd) CmdEffect {
	switch cmd.Kind {
	case CmdUpdateConfig:
		return s.handleUpdateConfig(ctx, cmd.Update)
	case CmdDumpState:
		state := s.dumpState()
		if cmd.ReplyCh != nil {
			select {
			case cmd.ReplyCh <- state:
			default:
			}
		}
		return CmdEffectNothing
	default:
		return CmdEffectNothing
	}
}

func (s *Supervisor) handleUpdateConfig(ctx context.Context, u ConfigUpdate) CmdEffect {
	switch u.Kind {
	case ConfigUpdateAdd:
		return s.addChain(ctx, u.Chain)
	case ConfigUpdateRemove:
		return s.removeChain(u.ChainID)
	case ConfigUpdateUpdate:
		removed := s.removeChain(u.Chain.ID)
		added := s.addChain(ctx, u.Chain)
		return joinEffect(removed, added)
	default:
		return CmdEffectNothing
	}
}

func (s *Supervisor) addChain(ctx context.Context, cc config.ChainConfig) CmdEffect {
	var alreadyPresent bool
	s.cfg.Write(func(c *config.Config) {
		if c.HasChain(cc.ID) {
			alreadyPresent = true
			return
		}
		c.AddChain(cc)
	})
	if alreadyPresent {
		return CmdEffectNothing
	}

	if err := s.registry.Spawn(ctx, cc.ID); err != nil {
		// Roll back the Config write on spawn failure (spec §4.6).
		s.cfg.Write(func(c *config.Config) { c.RemoveChain(cc.ID) })
		s.log.WithError(err).WithField("chain_id", string(cc.ID)).Warn("chain spawn failed, rolling back config add")
		return CmdEffectNothing
	}

	sc := &worker.SpawnContext{
		Config:   s.cfg,
		Registry: s.registry,
		Workers:  s.workers,
		Mode:     worker.SpawnModeReload,
		Log:      s.log,
	}
	if err := sc.SpawnWorkersForChain(ctx, cc.ID); err != nil {
		s.log.WithError(err).WithField("chain_id", string(cc.ID)).Warn("error spawning workers for added chain")
	}
	return CmdEffectConfigChanged
}

func (s *Supervisor) removeChain(id ibc.ChainID) CmdEffect {
	var present bool
	s.cfg.Read(func(c *config.Config) { present = c.HasChain(id) })
	if !present {
		return CmdEffectNothing
	}

	sc := &worker.SpawnContext{
		Config:   s.cfg,
		Registry: s.registry,
		Workers:  s.workers,
		Log:      s.log,
	}
	sc.ShutdownWorkersForChain(id)
	s.registry.Shutdown(id)
	s.cfg.Write(func(c *config.Config) { c.RemoveChain(id) })
	return CmdEffectConfigChanged
}
