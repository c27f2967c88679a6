package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/factoryccu/core/dispatch/history"
	"github.com/kilianp07/factoryccu/core/events"
	"github.com/kilianp07/factoryccu/core/flows"
	"github.com/kilianp07/factoryccu/core/logger"
	"github.com/kilianp07/factoryccu/core/metrics"
	"github.com/kilianp07/factoryccu/core/model"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
	"github.com/kilianp07/factoryccu/core/readiness"
	"github.com/kilianp07/factoryccu/core/reservation"
	"github.com/kilianp07/factoryccu/core/routing"
	"github.com/kilianp07/factoryccu/internal/eventbus"
)

// Engine owns the job queue and drives jobs through their steps.
//
// Engine is single-threaded: every exported method must be called from one
// goroutine (or under one lock). Device outcomes arrive asynchronously via
// HandleStepCompletion; nothing inside the engine waits or retries on a
// timer. Steps that cannot run yet stay ENQUEUED until the next sweep.
type Engine struct {
	cfg      Config
	modules  *readiness.ModuleTracker
	vehicles *readiness.VehicleTracker
	arbiter  *reservation.Arbiter
	planner  *routing.Planner
	flows    flows.Provider
	pub      Publisher
	log      logger.Logger

	bus     eventbus.EventBus
	sink    metrics.MetricsSink
	history history.Store

	now   func() time.Time
	newID func() string

	queue     []*model.Job
	active    []*model.Job
	completed []*model.Job
	// blocked maps a module serial to the job whose move is waiting for an
	// idle vehicle parked there to leave.
	blocked map[string]string
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(cfg Config, modules *readiness.ModuleTracker, vehicles *readiness.VehicleTracker, arbiter *reservation.Arbiter, planner *routing.Planner, fp flows.Provider, pub Publisher, log logger.Logger) (*Engine, error) {
	if modules == nil || vehicles == nil || arbiter == nil || planner == nil || fp == nil || pub == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	planner.DisableBlocking(cfg.DisableNodeBlocking)
	return &Engine{
		cfg:      cfg,
		modules:  modules,
		vehicles: vehicles,
		arbiter:  arbiter,
		planner:  planner,
		flows:    fp,
		pub:      pub,
		log:      log,
		sink:     metrics.NopSink{},
		history:  history.NopStore{},
		now:      time.Now,
		newID:    uuid.NewString,
		blocked:  make(map[string]string),
	}, nil
}

// SetEventBus configures the bus receiving job, step and route events.
func (e *Engine) SetEventBus(bus eventbus.EventBus) { e.bus = bus }

// SetMetricsSink configures the sink recording archived jobs.
func (e *Engine) SetMetricsSink(sink metrics.MetricsSink) {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	e.sink = sink
}

// SetHistoryStore configures the archive of terminal jobs.
func (e *Engine) SetHistoryStore(store history.Store) {
	if store == nil {
		store = history.NopStore{}
	}
	e.history = store
}

// SetMaxParallelJobs changes the production job ceiling and starts queued
// jobs the new ceiling admits.
func (e *Engine) SetMaxParallelJobs(ctx context.Context, n int) {
	if n < 0 {
		n = 0
	}
	e.cfg.MaxParallelJobs = n
	e.startQueued(ctx)
	e.TriggerPending(ctx)
	e.publishSnapshots(ctx)
}

// SubmitJob admits a job request. The governing resource (a stock unit for
// production, an empty bay for storage) is reserved before admission.
func (e *Engine) SubmitJob(ctx context.Context, req model.JobRequest) (model.Job, error) {
	job, err := e.admit(req)
	if err != nil {
		return model.Job{}, err
	}
	e.startQueued(ctx)
	e.TriggerPending(ctx)
	e.publishSnapshots(ctx)
	return job.Clone(), nil
}

func (e *Engine) admit(req model.JobRequest) (*model.Job, error) {
	if !req.WorkpieceType.Valid() {
		return nil, e.reject(req, "invalid", fmt.Errorf("%w: %w: workpiece type %q", ErrJobRejected, ErrInvalidRequest, req.WorkpieceType))
	}
	id := e.newID()
	var (
		steps []*model.Step
		err   error
	)
	switch req.Type {
	case model.JobProduction:
		def, ok := e.flows.ProductionDefinitionFor(req.WorkpieceType)
		if !ok {
			return nil, e.reject(req, "no_flow", fmt.Errorf("%w: %w for %s", ErrJobRejected, ErrNoFlow, req.WorkpieceType))
		}
		steps = expandProduction(def, e.newID)
		_, err = e.arbiter.ReserveWorkpiece(id, req.WorkpieceType)
	case model.JobStorage:
		steps = expandStorage(e.newID)
		_, err = e.arbiter.ReserveEmptyBay(id, req.WorkpieceType)
	default:
		return nil, e.reject(req, "invalid", fmt.Errorf("%w: %w: job type %q", ErrJobRejected, ErrInvalidRequest, req.Type))
	}
	if err != nil {
		if errors.Is(err, reservation.ErrReservationConflict) {
			coremon.CaptureException(err, map[string]string{"module": "dispatch_engine", "order_id": id})
			e.log.Errorf("reservation conflict for new job %s: %v", id, err)
			return nil, err
		}
		return nil, e.reject(req, "no_resource", fmt.Errorf("%w: %w", ErrJobRejected, err))
	}
	job := &model.Job{
		ID:            id,
		Type:          req.Type,
		WorkpieceType: req.WorkpieceType,
		WorkpieceID:   req.WorkpieceID,
		Steps:         steps,
		Status:        model.StatusEnqueued,
		CreatedAt:     e.now(),
	}
	e.queue = append(e.queue, job)
	jobsSubmitted.WithLabelValues(string(job.Type)).Inc()
	e.log.Infof("job %s admitted (%s %s, %d steps)", job.ID, job.Type, job.WorkpieceType, len(job.Steps))
	e.emitJob(job, "")
	return job, nil
}

func (e *Engine) reject(req model.JobRequest, reason string, err error) error {
	jobsRejected.WithLabelValues(reason).Inc()
	e.log.Warnf("job request rejected: %v", err)
	e.emit(events.JobEvent{
		Type:          req.Type,
		WorkpieceType: req.WorkpieceType,
		Status:        model.StatusCancelled,
		Reason:        err.Error(),
		Time:          e.now(),
	})
	return err
}

// StartJob moves a queued job into the active set. It reports false when
// the job is unknown or the production ceiling is reached.
func (e *Engine) StartJob(ctx context.Context, jobID string) bool {
	for i, j := range e.queue {
		if j.ID != jobID {
			continue
		}
		if !e.canStart(j) {
			return false
		}
		e.queue = append(e.queue[:i:i], e.queue[i+1:]...)
		e.activate(j)
		e.TriggerPending(ctx)
		e.publishSnapshots(ctx)
		return true
	}
	return false
}

// canStart applies the parallel production ceiling. A halted job still
// holds its devices until reset, so it counts like a running one.
func (e *Engine) canStart(j *model.Job) bool {
	if j.Type != model.JobProduction || e.cfg.MaxParallelJobs == 0 {
		return true
	}
	running := 0
	for _, a := range e.active {
		if a.Type == model.JobProduction && (a.Status == model.StatusInProgress || a.Status == model.StatusError) {
			running++
		}
	}
	return running < e.cfg.MaxParallelJobs
}

func (e *Engine) activate(j *model.Job) {
	now := e.now()
	j.Status = model.StatusInProgress
	j.StartedAt = &now
	e.active = append(e.active, j)
	e.log.Infof("job %s started", j.ID)
	e.emitJob(j, "")
}

// startQueued starts queued jobs in FIFO order as far as the ceiling allows.
// Storage jobs behind a blocked production job still start.
func (e *Engine) startQueued(ctx context.Context) {
	kept := e.queue[:0:0]
	for _, j := range e.queue {
		if e.canStart(j) {
			e.activate(j)
			continue
		}
		kept = append(kept, j)
	}
	e.queue = kept
	jobsQueued.Set(float64(len(e.queue)))
	jobsActive.Set(float64(len(e.active)))
}

// TriggerPending runs the relocation, move and production sweeps until no
// further step can be dispatched. It is safe to call on every device report.
func (e *Engine) TriggerPending(ctx context.Context) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()
	e.relocateBlockingVehicles(ctx)
	// A zero-length move finishes inline and unlocks its dependent, so loop
	// while sweeps make progress. Each round finishes at least one step.
	for round := 0; round <= e.pendingSteps(); round++ {
		moved := e.triggerPendingMoveSteps(ctx)
		produced := e.triggerPendingProductionSteps(ctx)
		if !moved && !produced {
			return
		}
	}
}

func (e *Engine) pendingSteps() int {
	n := 0
	for _, j := range e.active {
		for _, s := range j.Steps {
			if s.Status == model.StatusEnqueued {
				n++
			}
		}
	}
	return n
}

// runnable lists the ENQUEUED steps of kind whose dependency is satisfied,
// in job admission order.
func (e *Engine) runnable(kind model.StepKind) []jobStep {
	var out []jobStep
	for _, j := range e.active {
		if j.Status != model.StatusInProgress {
			continue
		}
		for _, s := range j.Steps {
			if s.Kind != kind || s.Status != model.StatusEnqueued {
				continue
			}
			if s.DependsOn != "" {
				dep, ok := j.Step(s.DependsOn)
				if !ok || dep.Status != model.StatusFinished {
					continue
				}
			}
			out = append(out, jobStep{job: j, step: s})
		}
	}
	return out
}

type jobStep struct {
	job  *model.Job
	step *model.Step
}

// ResetJob force-terminates a job in any state: its reservation is released,
// its pending steps are discarded, its devices are unassigned and a global
// sweep follows.
func (e *Engine) ResetJob(ctx context.Context, jobID string) error {
	j, queued := e.find(jobID)
	if j == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	if queued {
		e.queue = removeJob(e.queue, jobID)
	} else {
		e.active = removeJob(e.active, jobID)
	}
	for _, s := range j.Steps {
		if !s.Status.Terminal() {
			s.Status = model.StatusCancelled
		}
	}
	if j.Type == model.JobStorage {
		e.cancelStorage(ctx, j)
	}
	e.terminate(j, model.StatusCancelled, "reset")
	e.startQueued(ctx)
	e.TriggerPending(ctx)
	e.publishSnapshots(ctx)
	return nil
}

func (e *Engine) cancelStorage(ctx context.Context, j *model.Job) {
	dps := ""
	for _, s := range j.Steps {
		if s.ModuleType() == model.ModuleDPS && s.Serial != "" {
			dps = s.Serial
			break
		}
	}
	if dps == "" {
		if all := e.modules.ConnectedOfType(model.ModuleDPS); len(all) > 0 {
			dps = all[0]
		}
	}
	if dps == "" {
		return
	}
	e.instantAction(ctx, dps, model.InstantCancelStorage, map[string]string{"orderId": j.ID, "type": string(j.WorkpieceType)})
}

// ResetDevice sends a reset instant action to a device and clears its job
// assignment and node claims.
func (e *Engine) ResetDevice(ctx context.Context, serial string) error {
	if err := e.instantAction(ctx, serial, model.InstantReset, nil); err != nil {
		return err
	}
	if e.modules.Release(serial, "") {
		e.log.Infof("module %s released by reset", serial)
	}
	if e.vehicles.Release(serial, "") {
		e.log.Infof("vehicle %s released by reset", serial)
	}
	if b := e.planner.Blocker(); b != nil {
		b.ReleaseAll(serial)
	}
	delete(e.blocked, serial)
	e.TriggerPending(ctx)
	e.publishSnapshots(ctx)
	return nil
}

func (e *Engine) instantAction(ctx context.Context, serial string, typ model.InstantActionType, meta map[string]string) error {
	act := model.InstantAction{
		Timestamp:    e.now(),
		SerialNumber: serial,
		Actions:      []model.InstantActionItem{{ActionID: e.newID(), ActionType: typ, Metadata: meta}},
	}
	if err := e.pub.PublishInstantAction(ctx, act); err != nil {
		publishFailures.WithLabelValues("instant_action").Inc()
		e.log.Errorf("instant action %s to %s: %v", typ, serial, err)
		return err
	}
	return nil
}

// terminate archives j with the given terminal status and frees everything
// it holds. j must already be removed from the queue and active set.
func (e *Engine) terminate(j *model.Job, status model.Status, reason string) {
	now := e.now()
	j.Status = status
	j.StoppedAt = &now
	vehicle := e.releaseDevices(j)
	e.arbiter.Release(j.ID)
	for serial, id := range e.blocked {
		if id == j.ID {
			delete(e.blocked, serial)
		}
	}
	e.archive(j, vehicle)
	e.emitJob(j, reason)
	jobsActive.Set(float64(len(e.active)))
	jobsQueued.Set(float64(len(e.queue)))
	e.log.Infof("job %s %s", j.ID, status)
}

// releaseDevices unassigns modules and the vehicle of j. The vehicle keeps
// the claim on the node it stands on.
func (e *Engine) releaseDevices(j *model.Job) string {
	e.modules.ReleaseJob(j.ID)
	v, ok := e.vehicles.AssignedTo(j.ID)
	if !ok {
		return ""
	}
	e.vehicles.Release(v, j.ID)
	if b := e.planner.Blocker(); b != nil {
		if info, ok := e.vehicles.Vehicle(v); ok && info.LastNodeID != "" {
			b.ReleaseAllExcept(v, info.LastNodeID)
		}
	}
	return v
}

func (e *Engine) archive(j *model.Job, vehicle string) {
	e.completed = append(e.completed, j)
	if limit := e.cfg.CompletedLimit; limit > 0 && len(e.completed) > limit {
		e.completed = e.completed[len(e.completed)-limit:]
	}
	if err := e.history.Append(context.Background(), history.NewRecord(j, vehicle, *j.StoppedAt)); err != nil {
		e.log.Errorf("archive job %s: %v", j.ID, err)
	}
	res := metrics.JobResult{
		JobID:         j.ID,
		Type:          j.Type,
		WorkpieceType: j.WorkpieceType,
		Status:        j.Status,
		Vehicle:       vehicle,
		Steps:         len(j.Steps),
		FinishedAt:    *j.StoppedAt,
	}
	if j.StartedAt != nil {
		res.Duration = j.StoppedAt.Sub(*j.StartedAt)
	}
	if err := e.sink.RecordJobResult(res); err != nil {
		e.log.Errorf("metrics error: %v", err)
	}
}

func (e *Engine) find(jobID string) (*model.Job, bool) {
	for _, j := range e.queue {
		if j.ID == jobID {
			return j, true
		}
	}
	for _, j := range e.active {
		if j.ID == jobID {
			return j, false
		}
	}
	return nil, false
}

func removeJob(jobs []*model.Job, id string) []*model.Job {
	out := jobs[:0:0]
	for _, j := range jobs {
		if j.ID != id {
			out = append(out, j)
		}
	}
	return out
}

// Job returns a copy of a queued, active or recently completed job.
func (e *Engine) Job(jobID string) (model.Job, bool) {
	if j, _ := e.find(jobID); j != nil {
		return j.Clone(), true
	}
	for _, j := range e.completed {
		if j.ID == jobID {
			return j.Clone(), true
		}
	}
	return model.Job{}, false
}

// Jobs returns copies of queued and active jobs in admission order.
func (e *Engine) Jobs() []model.Job {
	out := make([]model.Job, 0, len(e.queue)+len(e.active))
	for _, j := range e.active {
		out = append(out, j.Clone())
	}
	for _, j := range e.queue {
		out = append(out, j.Clone())
	}
	return out
}

// Completed returns copies of the most recently archived jobs.
func (e *Engine) Completed() []model.Job {
	out := make([]model.Job, len(e.completed))
	for i, j := range e.completed {
		out[i] = j.Clone()
	}
	return out
}

// Reset drops every job and reservation, e.g. after a factory reset.
func (e *Engine) Reset(ctx context.Context) {
	for _, j := range append(append([]*model.Job(nil), e.active...), e.queue...) {
		e.active = removeJob(e.active, j.ID)
		e.queue = removeJob(e.queue, j.ID)
		e.terminate(j, model.StatusCancelled, "factory reset")
	}
	e.arbiter.Reset()
	e.blocked = make(map[string]string)
	e.publishSnapshots(ctx)
}

func (e *Engine) publishSnapshots(ctx context.Context) {
	now := e.now()
	active := model.JobSnapshot{Jobs: e.Jobs(), Timestamp: now}
	completed := model.JobSnapshot{Jobs: e.Completed(), Timestamp: now}
	if err := e.pub.PublishJobSnapshots(ctx, active, completed); err != nil {
		publishFailures.WithLabelValues("snapshot").Inc()
		e.log.Warnf("publish job snapshots: %v", err)
	}
}

func (e *Engine) emit(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) emitJob(j *model.Job, reason string) {
	e.emit(events.JobEvent{
		JobID:         j.ID,
		Type:          j.Type,
		WorkpieceType: j.WorkpieceType,
		Status:        j.Status,
		Reason:        reason,
		Time:          e.now(),
	})
}

func (e *Engine) emitStep(j *model.Job, s *model.Step) {
	ev := events.StepEvent{
		JobID:   j.ID,
		StepID:  s.ID,
		Kind:    s.Kind,
		Module:  s.ModuleType(),
		Serial:  s.Serial,
		Vehicle: s.Vehicle,
		Status:  s.Status,
		Time:    e.now(),
	}
	if s.Produce != nil {
		ev.Command = s.Produce.Command
	}
	if s.StartedAt != nil && s.StoppedAt != nil {
		ev.Duration = s.StoppedAt.Sub(*s.StartedAt)
	}
	e.emit(ev)
}
