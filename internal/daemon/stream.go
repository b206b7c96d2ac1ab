package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"scribe/internal/api"
	"scribe/internal/broadcast"
	"scribe/internal/logging"
	"scribe/internal/store"
)

// handleStream serves a job's live progress over server-sent events. The
// session subscribes before reading the snapshot so no event can fall between
// the two, emits the snapshot first, then forwards hub events until exactly
// one terminal event has been sent. A job that is already terminal gets the
// snapshot as its only frame; the registration made for the race window is
// simply discarded by the deferred Unsubscribe without ever being read.
func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id := r.PathValue("id")
	sub := s.daemon.hub.Subscribe(id)
	defer s.daemon.hub.Unsubscribe(sub)

	job, err := s.daemon.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot := api.EventFromJob(job, s.resultFiles(r.Context(), job), "")
	if err := writeSSE(w, flusher, snapshot); err != nil {
		return
	}
	if snapshot.Terminal() {
		return
	}

	for {
		event, err := sub.Next(r.Context())
		if errors.Is(err, broadcast.ErrClosed) {
			// The pipeline detached subscribers before this reader saw a
			// terminal event. Close the stream from the durable row instead.
			s.emitFinalSnapshot(w, flusher, r, id)
			return
		}
		if err != nil {
			return
		}
		if err := writeSSE(w, flusher, event); err != nil {
			return
		}
		if event.Terminal() {
			return
		}
	}
}

// emitFinalSnapshot re-reads the job row and emits it as the stream's
// terminal event.
func (s *apiServer) emitFinalSnapshot(w http.ResponseWriter, flusher http.Flusher, r *http.Request, id string) {
	ctx := context.WithoutCancel(r.Context())
	job, err := s.daemon.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return
	}
	if !job.IsTerminal() {
		return
	}
	_ = writeSSE(w, flusher, api.EventFromJob(job, s.resultFiles(ctx, job), ""))
}

func (s *apiServer) resultFiles(ctx context.Context, job *store.Job) []*store.ResultFile {
	if job.Status != store.StatusCompleted {
		return nil
	}
	files, err := s.daemon.store.ResultFilesForJob(ctx, job.ID)
	if err != nil {
		s.log().Warn("load result files for stream failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
		return nil
	}
	return files
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event api.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
