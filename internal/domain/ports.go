package domain

import "context"

// JobAPI defines the request layer against the download backend.
// Implementations never retry; retry policy belongs to the caller.
type JobAPI interface {
	// CreateJob submits url and returns the backend-assigned handle
	CreateJob(ctx context.Context, url string) (*JobHandle, error)

	// GetStatus returns the current status report of a job
	GetStatus(ctx context.Context, id string) (*StatusReport, error)

	// FetchArtifact retrieves the produced artifact of a finished job
	FetchArtifact(ctx context.Context, id string) (*TransferResult, error)

	// DeleteJob removes the job and its artifact from the backend
	DeleteJob(ctx context.Context, id string) error
}

// Projector receives lifecycle notifications and renders them.
// Calls are serialized and arrive in transition order, but never under the
// controller's state lock, so implementations may block or query it.
type Projector interface {
	OnProgressInit()
	OnProgressUpdate(progress float64)
	OnProgressReset()
	OnPostprocessingEnter()
	OnPostprocessingExit()
	OnError(message string)
	OnErrorCleared()
	OnSaveArtifact(data []byte, filename string)
}

// FilenameExtractor derives a suggested filename from a raw
// content-disposition header. An empty result means no usable name.
type FilenameExtractor interface {
	Extract(header string) string
}

// FilenameExtractorFunc adapts a function to FilenameExtractor
type FilenameExtractorFunc func(header string) string

// Extract calls f(header)
func (f FilenameExtractorFunc) Extract(header string) string {
	return f(header)
}
