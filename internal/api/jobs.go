package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/logger"
)

// SubmitJob handles POST /api/v1/statements/jobs. It accepts the same form
// as ExtractStatement and responds 202 with the pending job.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	job := extraction.NewJob(up.filename, up.fileType)
	if err := h.jobs.Create(job); err != nil {
		h.log.Error().Err(err).Msg("failed to create job")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not create job")
		return
	}

	log := h.log.With().Str("job_id", job.ID).Logger()
	go h.runJob(log, job.ID, up)

	log.Info().Str("file", up.filename).Msg("statement job submitted")
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) runJob(log zerolog.Logger, id string, up *upload) {
	_ = h.jobs.Update(id, func(j *extraction.Job) { j.Status = extraction.JobProcessing })

	ctx := logger.WithContext(h.jobCtx, log)
	result, err := h.svc.ProcessStatement(ctx, up.data, up.fileType, up.pctx, up.preferred)
	if err != nil {
		log.Warn().Err(err).Msg("statement job aborted")
		_ = h.jobs.Update(id, func(j *extraction.Job) {
			j.Status = extraction.JobFailed
			j.Error = err.Error()
		})
		return
	}

	h.logResult(up, result)
	_ = h.jobs.Update(id, func(j *extraction.Job) {
		j.Status = extraction.JobCompleted
		j.Result = result
	})
}

// GetJob handles GET /api/v1/statements/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.PathValue("id"))
	if errors.Is(err, extraction.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}
