// Package testutil provides an in-process download backend speaking the
// same REST surface as the real worker, for tests and local development.
package testutil

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is one scripted status answer
type Step struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// Fault replaces the normal answer of an operation
type Fault struct {
	Code int
	Body string
}

// Operations that can be faulted
const (
	OpCreate = "create"
	OpStatus = "status"
	OpFetch  = "fetch"
	OpDelete = "delete"
)

// BackendOptions configures a Backend
type BackendOptions struct {
	// Script is replayed by every new job, one step per status request.
	// The last step repeats. An empty script finishes immediately.
	Script []Step

	// Artifact is served for every finished job
	Artifact []byte

	// Disposition is sent as the content-disposition header when set
	Disposition string

	// UUIDIDs issues uuid job ids instead of sequential integers
	UUIDIDs bool
}

// JobRecord is the backend-side view of a job
type JobRecord struct {
	ID      string
	URL     string
	Polls   int
	Deleted bool
}

// Backend is a scripted fake of the download worker API
type Backend struct {
	opts   BackendOptions
	router *gin.Engine
	logger *zap.Logger

	mu       sync.Mutex
	nextID   int
	jobs     map[string]*JobRecord
	faults   map[string]Fault
	requests []string
}

// NewBackend creates a fake backend
func NewBackend(opts BackendOptions, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)

	b := &Backend{
		opts:   opts,
		logger: log,
		nextID: 1,
		jobs:   make(map[string]*JobRecord),
		faults: make(map[string]Fault),
	}

	router := gin.New()
	router.Use(Logger(log))
	router.Use(Recovery(log))
	router.Use(b.record)

	router.POST("/download/", b.create)
	router.GET("/download/:id/status", b.status)
	router.GET("/download/:id", b.fetch)
	router.DELETE("/download/:id", b.deleteJob)

	b.router = router
	return b
}

// Handler returns the HTTP handler serving the backend
func (b *Backend) Handler() http.Handler {
	return b.router
}

// SetFault makes op answer with f until cleared
func (b *Backend) SetFault(op string, f Fault) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = f
}

// ClearFault restores the normal answer of op
func (b *Backend) ClearFault(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.faults, op)
}

// Job returns a copy of the record of job id
func (b *Backend) Job(id string) (JobRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[id]
	if !ok {
		return JobRecord{}, false
	}
	return *job, true
}

// Requests returns the "METHOD path" lines received so far
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *Backend) record(c *gin.Context) {
	b.mu.Lock()
	b.requests = append(b.requests, c.Request.Method+" "+c.Request.URL.Path)
	b.mu.Unlock()
	c.Next()
}

// fault answers c with the configured fault of op, if any
func (b *Backend) fault(c *gin.Context, op string) bool {
	b.mu.Lock()
	f, ok := b.faults[op]
	b.mu.Unlock()

	if !ok {
		return false
	}
	c.Data(f.Code, "application/json", []byte(f.Body))
	return true
}

func (b *Backend) create(c *gin.Context) {
	if b.fault(c, OpCreate) {
		return
	}

	url := c.Query("start")
	if url == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "missing start parameter"})
		return
	}

	b.mu.Lock()
	id := strconv.Itoa(b.nextID)
	b.nextID++
	if b.opts.UUIDIDs {
		id = uuid.New().String()
	}
	b.jobs[id] = &JobRecord{ID: id, URL: url}
	b.mu.Unlock()

	b.logger.Info("Job created", zap.String("job_id", id), zap.String("url", url))

	if b.opts.UUIDIDs {
		c.JSON(http.StatusOK, gin.H{"id": id})
		return
	}
	n, _ := strconv.Atoi(id)
	c.JSON(http.StatusOK, gin.H{"id": n})
}

func (b *Backend) status(c *gin.Context) {
	if b.fault(c, OpStatus) {
		return
	}

	b.mu.Lock()
	job, ok := b.jobs[c.Param("id")]
	if !ok || job.Deleted {
		b.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}
	step := b.step(job.Polls)
	job.Polls++
	b.mu.Unlock()

	c.JSON(http.StatusOK, step)
}

// step returns the scripted answer for the n-th status request. Callers hold b.mu.
func (b *Backend) step(n int) Step {
	script := b.opts.Script
	if len(script) == 0 {
		return Step{Status: "FINISHED", Progress: 100}
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n]
}

func (b *Backend) fetch(c *gin.Context) {
	if b.fault(c, OpFetch) {
		return
	}

	b.mu.Lock()
	job, ok := b.jobs[c.Param("id")]
	found := ok && !job.Deleted
	b.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	if b.opts.Disposition != "" {
		c.Header("Content-Disposition", b.opts.Disposition)
	}
	c.Data(http.StatusOK, "application/octet-stream", b.opts.Artifact)
}

func (b *Backend) deleteJob(c *gin.Context) {
	if b.fault(c, OpDelete) {
		return
	}

	b.mu.Lock()
	job, ok := b.jobs[c.Param("id")]
	found := ok && !job.Deleted
	if found {
		job.Deleted = true
	}
	b.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
