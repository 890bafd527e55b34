// Package orchestrator drives the task catalog through the external tool,
// one section at a time, enforcing the linear dependency chain.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pablasso/baton/internal/config"
	"github.com/pablasso/baton/internal/executor"
	"github.com/pablasso/baton/internal/failure"
	"github.com/pablasso/baton/internal/git"
	"github.com/pablasso/baton/internal/logging"
	"github.com/pablasso/baton/internal/status"
	"github.com/pablasso/baton/internal/task"
	"go.uber.org/zap"
)

// Checkpointer records progress in version control. Implementations absorb
// their own failures.
type Checkpointer interface {
	Checkpoint(ctx context.Context, completed int, label string) git.Outcome
}

// Summary aggregates one pass over the catalog.
type Summary struct {
	Processed int
	Completed int
	Failed    int
	Skipped   int
	// Blocked counts tasks newly marked blocked during this pass.
	Blocked int
	// HaltedAt names the task that stopped the pass, if any.
	HaltedAt    string
	Checkpoints int
	Duration    time.Duration
}

// Orchestrator runs the catalog against a status store.
type Orchestrator struct {
	tasksDir     string
	taskExt      string
	interval     int
	sectionDelay time.Duration
	taskDelay    time.Duration

	store        *status.Store
	runner       executor.Runner
	checkpointer Checkpointer
	journal      *status.Journal
	logger       *zap.Logger
	sleep        func(time.Duration)
}

// New creates an orchestrator from configuration. The runner defaults to
// the configured external tool; checkpointing is off until a Checkpointer
// is set.
func New(cfg *config.Config, store *status.Store, logger *zap.Logger) *Orchestrator {
	logger = logging.OrNop(logger)
	return &Orchestrator{
		tasksDir:     cfg.TasksDir,
		taskExt:      cfg.TaskExt,
		interval:     cfg.Checkpoint.Interval,
		sectionDelay: cfg.Run.SectionDelay,
		taskDelay:    cfg.Run.TaskDelay,
		store:        store,
		runner:       executor.NewToolRunner(cfg.Tool, cfg.SectionLogDir(), logger),
		logger:       logger.Named("orchestrator"),
		sleep:        time.Sleep,
	}
}

// WithRunner sets a custom runner (useful for testing).
func (o *Orchestrator) WithRunner(r executor.Runner) *Orchestrator {
	o.runner = r
	return o
}

// WithCheckpointer enables checkpoints. A nil value disables them.
func (o *Orchestrator) WithCheckpointer(c Checkpointer) *Orchestrator {
	o.checkpointer = c
	return o
}

// WithJournal sets the progress journal.
func (o *Orchestrator) WithJournal(j *status.Journal) *Orchestrator {
	o.journal = j
	return o
}

// WithSleep replaces the pacing delay function (useful for testing).
func (o *Orchestrator) WithSleep(sleep func(time.Duration)) *Orchestrator {
	o.sleep = sleep
	return o
}

// errHalt stops the pass once the cause has been recorded.
var errHalt = errors.New("halt")

// Run makes one pass over the catalog. The returned error is non-nil only
// for conditions that prevent recording progress: a missing catalog or a
// status file that cannot be written. Task failures halt the pass and are
// reported through the Summary.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	start := time.Now()

	refs, err := task.List(o.tasksDir, o.taskExt)
	if err != nil {
		if kind := failure.KindOf(err); kind.Fatal() {
			o.logger.Error("cannot start run", zap.String("kind", kind.String()), zap.Error(err))
		}
		return sum, err
	}

	o.event(status.EventRunStarted, map[string]any{"tasks": len(refs)})
	if len(refs) == 0 {
		o.logger.Warn("no tasks found", zap.String("dir", o.tasksDir))
	}

	err = o.runAll(ctx, refs, &sum)
	sum.Duration = time.Since(start)
	if err != nil && !errors.Is(err, errHalt) {
		return sum, err
	}

	if sum.HaltedAt == "" && sum.Completed > 0 && o.allSucceeded(refs) {
		o.checkpoint(ctx, &sum, len(refs), refs[len(refs)-1].ID)
	}

	o.logSummary(sum)
	o.event(status.EventRunFinished, map[string]any{
		"processed": sum.Processed,
		"completed": sum.Completed,
		"failed":    sum.Failed,
		"skipped":   sum.Skipped,
		"blocked":   sum.Blocked,
		"halted_at": sum.HaltedAt,
	})
	return sum, nil
}

func (o *Orchestrator) runAll(ctx context.Context, refs []task.Ref, sum *Summary) error {
	ranPrevious := false
	for i, ref := range refs {
		log := o.logger.With(zap.String("task", ref.ID))
		st, known := o.store.Get(ref.ID)

		if known && st.Blocked {
			log.Error("task is blocked, run clear-blocked after fixing the cause",
				zap.String("reason", st.BlockedReason))
			sum.HaltedAt = ref.ID
			return errHalt
		}

		if i > 0 && !o.store.Succeeded(refs[i-1].ID) {
			prev := refs[i-1].ID
			log.Error("predecessor has not completed successfully", zap.String("predecessor", prev))
			if err := o.blockFrom(refs, i, prev, sum); err != nil {
				return err
			}
			sum.HaltedAt = ref.ID
			return errHalt
		}

		if known && st.Succeeded() {
			log.Info("skipping completed task")
			sum.Skipped++
			sum.Processed++
			continue
		}

		if ranPrevious && o.taskDelay > 0 {
			o.sleep(o.taskDelay)
		}
		ranPrevious = true

		sum.Processed++
		if err := o.runTask(ctx, refs, i, st, known); err != nil {
			if !failure.KindOf(err).HaltsRun() {
				return err
			}
			sum.Failed++
			sum.HaltedAt = ref.ID
			if blockErr := o.blockFrom(refs, i+1, ref.ID, sum); blockErr != nil {
				return blockErr
			}
			return errHalt
		}

		sum.Completed++
		if o.interval > 0 && sum.Completed%o.interval == 0 {
			o.checkpoint(ctx, sum, sum.Completed, ref.ID)
		}
	}
	return nil
}

// runTask executes every remaining section of refs[i]. A recorded task
// failure is returned as a *failure.Error whose kind halts the run; any
// other error means the status could not be written.
func (o *Orchestrator) runTask(ctx context.Context, refs []task.Ref, i int, prior status.TaskStatus, known bool) error {
	ref := refs[i]
	log := o.logger.With(zap.String("task", ref.ID))

	def, err := task.Load(ref)
	if err != nil {
		if !failure.Is(err, failure.MalformedTask) {
			err = failure.New(failure.MalformedTask, "load "+ref.ID, err)
		}
		log.Error("cannot load task", zap.String("kind", failure.MalformedTask.String()), zap.Error(err))
		if _, serr := o.store.MarkStarted(ref.ID, 0, 0); serr != nil {
			return serr
		}
		if serr := o.store.MarkFinished(ref.ID, false, err.Error(), 0); serr != nil {
			return serr
		}
		o.event(status.EventTaskFailed, map[string]any{"task_id": ref.ID, "error": err.Error()})
		return err
	}
	log = log.With(zap.String("title", def.DisplayName()))

	split := task.SplitSections(def.Instruction)
	if split.Dropped > 0 {
		log.Warn("ignored section markers without enough content", zap.Int("dropped", split.Dropped))
	}
	if split.Fallback {
		log.Warn("no section markers found, running the instruction as one section")
	}
	total := len(split.Sections)

	resumeFrom := 0
	if known && prior.InProgress() && prior.TotalSections == total && prior.CompletedSections <= total {
		resumeFrom = prior.CompletedSections
	}
	if total > 0 && resumeFrom == total {
		// interrupted after its last section but before being finished
		if err := o.store.MarkFinished(ref.ID, true, "", total); err != nil {
			return err
		}
		log.Info("all sections already completed, finishing interrupted task", zap.Int("sections", total))
		o.event(status.EventTaskCompleted, map[string]any{"task_id": ref.ID, "attempt": prior.Attempts})
		return nil
	}

	st, err := o.store.MarkStarted(ref.ID, total, resumeFrom)
	if err != nil {
		return err
	}
	log = log.With(zap.Int("attempt", st.Attempts))
	if resumeFrom > 0 {
		log.Info("resuming interrupted task", zap.Int("section", resumeFrom+1), zap.Int("sections", total))
	} else {
		log.Info("task started", zap.Int("sections", total))
	}
	o.event(status.EventTaskStarted, map[string]any{
		"task_id": ref.ID, "attempt": st.Attempts, "sections": total, "resume_from": resumeFrom,
	})

	for idx := resumeFrom; idx < total; idx++ {
		if idx > resumeFrom && o.sectionDelay > 0 {
			o.sleep(o.sectionDelay)
		}
		sec := split.Sections[idx]
		secLog := log.With(zap.Int("section", idx+1))
		secLog.Info("running section", zap.Int("of", total), zap.String("section_title", sec.Title))

		res := o.runner.Run(ctx, executor.BuildInstruction(def, sec, total), executor.SectionLogID(ref.ID, idx+1), def.Timeout)
		if !res.Success {
			errText := sectionError(res)
			kind := failure.KindOf(res.Err)
			if !kind.HaltsRun() {
				kind = failure.SectionProcessFailure
			}
			fields := []zap.Field{zap.String("kind", kind.String()), zap.Duration("duration", res.Duration)}
			if res.ExitCode != nil {
				fields = append(fields, zap.Int("exit_code", *res.ExitCode))
			}
			secLog.Error("section failed: "+errText, fields...)
			if err := o.store.MarkFinished(ref.ID, false, errText, idx+1); err != nil {
				return err
			}
			o.event(status.EventTaskFailed, map[string]any{
				"task_id": ref.ID, "section": idx + 1, "timed_out": res.TimedOut, "kind": kind.String(), "error": errText,
			})
			return failure.Errorf(kind, "run "+ref.ID, "section %d: %s", idx+1, errText)
		}

		if err := o.store.MarkSectionCompleted(ref.ID, idx+1); err != nil {
			return err
		}
		secLog.Info("section completed", zap.Duration("duration", res.Duration))
		o.event(status.EventSectionCompleted, map[string]any{"task_id": ref.ID, "section": idx + 1})
	}

	if err := o.store.MarkFinished(ref.ID, true, "", total); err != nil {
		return err
	}
	log.Info("task completed")
	o.event(status.EventTaskCompleted, map[string]any{"task_id": ref.ID, "attempt": st.Attempts})
	return nil
}

// blockFrom marks refs[from:] blocked by cause, leaving completed-success
// tasks untouched.
func (o *Orchestrator) blockFrom(refs []task.Ref, from int, cause string, sum *Summary) error {
	reason := fmt.Sprintf("blocked by %s: predecessor did not complete successfully", cause)
	for _, ref := range refs[from:] {
		if o.store.Succeeded(ref.ID) {
			continue
		}
		if st, ok := o.store.Get(ref.ID); ok && st.Blocked {
			continue
		}
		if err := o.store.MarkBlocked(ref.ID, reason); err != nil {
			return err
		}
		sum.Blocked++
		o.logger.Warn("task blocked", zap.String("task", ref.ID), zap.String("reason", reason))
		o.event(status.EventTaskBlocked, map[string]any{"task_id": ref.ID, "blocked_by": cause})
	}
	return nil
}

func (o *Orchestrator) allSucceeded(refs []task.Ref) bool {
	for _, ref := range refs {
		if !o.store.Succeeded(ref.ID) {
			return false
		}
	}
	return true
}

func (o *Orchestrator) checkpoint(ctx context.Context, sum *Summary, completed int, label string) {
	if o.checkpointer == nil {
		return
	}
	out := o.checkpointer.Checkpoint(ctx, completed, label)
	sum.Checkpoints++
	data := map[string]any{"completed": completed, "label": label, "committed": out.Committed, "pushed": out.Pushed}
	if out.Err != nil {
		data["error"] = out.Err.Error()
	}
	o.event(status.EventCheckpoint, data)
}

func (o *Orchestrator) event(name string, data map[string]any) {
	if err := o.journal.Log(name, data); err != nil {
		o.logger.Warn("failed to write journal", zap.String("event", name), zap.Error(err))
	}
}

func (o *Orchestrator) logSummary(sum Summary) {
	fields := []zap.Field{
		zap.Int("processed", sum.Processed),
		zap.Int("completed", sum.Completed),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("blocked", sum.Blocked),
		zap.Int("checkpoints", sum.Checkpoints),
		zap.String("duration", formatDuration(sum.Duration)),
	}
	if sum.HaltedAt != "" {
		o.logger.Warn("run halted", append(fields, zap.String("halted_at", sum.HaltedAt))...)
		return
	}
	o.logger.Info("run finished", fields...)
}

func sectionError(res executor.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	return "section failed"
}

// formatDuration formats a duration as HH:MM:SS or MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
