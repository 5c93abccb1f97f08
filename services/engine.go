package services

import "go.uber.org/zap"

// Deps are the collaborators shared by every engine component. Nil Locker,
// Notifier, Clock and Logger get in-process defaults.
type Deps struct {
	Punches  PunchStore
	Users    UserDirectory
	Tx       Transactor
	Locker   UserLocker
	Notifier Notifier
	Clock    Clock
	Logger   *zap.Logger
}

// Engine bundles the components built over one policy.
type Engine struct {
	Policy     Policy
	Validator  *Validator
	Aggregator *Aggregator
	Detector   *Detector
	Punches    *PunchService
	Users      UserDirectory
	Notifier   Notifier
	Locker     UserLocker
	Clock      Clock
}

// NewEngine wires the engine components.
func NewEngine(policy Policy, deps Deps) *Engine {
	if deps.Locker == nil {
		deps.Locker = NewKeyedLocker()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	validator := NewValidator(policy)
	aggregator := NewAggregator(deps.Punches, policy, deps.Clock)
	detector := NewDetector(deps.Punches, deps.Users, deps.Tx, deps.Locker, policy, deps.Clock, deps.Logger.Named("detector"))
	punches := &PunchService{
		punches:    deps.Punches,
		users:      deps.Users,
		tx:         deps.Tx,
		locker:     deps.Locker,
		notifier:   deps.Notifier,
		clock:      deps.Clock,
		policy:     policy,
		validator:  validator,
		aggregator: aggregator,
		detector:   detector,
		logger:     deps.Logger.Named("punches"),
	}
	return &Engine{
		Policy:     policy,
		Validator:  validator,
		Aggregator: aggregator,
		Detector:   detector,
		Punches:    punches,
		Users:      deps.Users,
		Notifier:   deps.Notifier,
		Locker:     deps.Locker,
		Clock:      deps.Clock,
	}
}
