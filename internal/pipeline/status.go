package pipeline

import (
	"context"
	"time"

	"scribe/internal/api"
	"scribe/internal/logging"
	"scribe/internal/store"
)

// updateStatus is the single choke point for job state changes. It persists
// the update, then broadcasts the resulting row to subscribers. Persistence
// uses a detached context so a canceled job can still record its terminal
// state. Infrastructure failures are logged and swallowed: the pipeline keeps
// moving, and subscribers simply miss one snapshot.
func (c *Coordinator) updateStatus(ctx context.Context, jobID string, update store.JobUpdate, message string) {
	writeCtx := context.WithoutCancel(ctx)

	job, err := c.persist(writeCtx, jobID, update)
	if err != nil {
		c.logger.Error("persist job update failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
		return
	}
	if job == nil {
		// Row deleted out from under a running job. Nothing to tell anyone.
		return
	}

	var files []*store.ResultFile
	if job.Status == store.StatusCompleted {
		files, err = c.store.ResultFilesForJob(writeCtx, jobID)
		if err != nil {
			c.logger.Error("load result files for broadcast failed",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err))
		}
	}

	c.hub.Publish(jobID, api.EventFromJob(job, files, message))
}

// persist writes the update, retrying terminal transitions so a transient
// database error does not strand a finished job in processing.
func (c *Coordinator) persist(ctx context.Context, jobID string, update store.JobUpdate) (*store.Job, error) {
	retries := 0
	if update.Status != nil && update.Status.IsTerminal() {
		retries = c.cfg.Pipeline.TerminalWriteRetries
	}

	var job *store.Job
	var err error
	for attempt := 0; ; attempt++ {
		job, err = c.store.UpdateJob(ctx, jobID, update)
		if err == nil || attempt >= retries {
			return job, err
		}
		c.logger.Warn("retrying terminal job write",
			logging.String(logging.FieldJobID, jobID),
			logging.Int("attempt", attempt+1),
			logging.Error(err))
		time.Sleep(100 * time.Millisecond)
	}
}

func statusUpdate(status store.Status, progress float64) store.JobUpdate {
	return store.JobUpdate{Status: &status, Progress: &progress}
}

func progressUpdate(progress float64) store.JobUpdate {
	return store.JobUpdate{Progress: &progress}
}

// failUpdate marks a job failed while preserving the progress it reached.
func failUpdate(message string) store.JobUpdate {
	status := store.StatusFailed
	return store.JobUpdate{Status: &status, ErrorMessage: &message}
}
