package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"minutesapi/config"
	"minutesapi/job"
)

// uploadField is the fixed multipart field name for the audio file.
const uploadField = "audio_file"

type Handler struct {
	scheduler *job.Scheduler
	cfg       *config.Config
}

func NewHandler(s *job.Scheduler, cfg *config.Config) *Handler {
	return &Handler{
		scheduler: s,
		cfg:       cfg,
	}
}

// handleSubmitJob accepts a multipart audio upload and enqueues a job.
func (h *Handler) handleSubmitJob(c *gin.Context) {
	file, header, err := c.Request.FormFile(uploadField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file selected"})
		return
	}
	defer file.Close()

	j, err := h.scheduler.Submit(file, header.Filename, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrUnsupportedFormat):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, job.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": j.ID})
}

// handleListJobs lists all known jobs.
func (h *Handler) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.List())
}

// buildDownloadURLs fills in the full URLs for a completed job's exports.
func (h *Handler) buildDownloadURLs(c *gin.Context, st *job.Status) {
	if st.State != job.StateCompleted || st.Result == nil {
		return
	}

	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	st.DownloadURLs = make(map[string]string, len(st.Result.ExportedFiles))
	for format, path := range st.Result.ExportedFiles {
		st.DownloadURLs[format] = fmt.Sprintf("%s/api/v1/files/%s", baseURL, filepath.Base(path))
	}
}

// handleGetJobStatus serves the polling endpoint.
func (h *Handler) handleGetJobStatus(c *gin.Context) {
	jobID := c.Param("jobId")
	st, err := h.scheduler.Status(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	h.buildDownloadURLs(c, &st)
	c.JSON(http.StatusOK, st)
}

// handleCancelJob cancels a queued or running job.
func (h *Handler) handleCancelJob(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := h.scheduler.Cancel(jobID); err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job cancellation requested"})
}

// handleGetFile streams an exported document.
func (h *Handler) handleGetFile(c *gin.Context) {
	filename := c.Param("filename")
	filePath, err := h.scheduler.FilePath(filename)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(filePath, filepath.Base(filePath))
}
