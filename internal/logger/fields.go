package logger

// Standard field keys for structured logging. Use these consistently across
// components so logs aggregate cleanly.
const (
	KeyRequestID = "request_id"
	KeyFileID    = "file_id"
	KeyJobID     = "job_id"
	KeyWorkerID  = "worker_id"

	KeyKey         = "key"       // object store key
	KeyBucket      = "bucket"    // S3 bucket
	KeySize        = "size"      // byte counts
	KeyLine        = "line"      // input line number
	KeyState       = "state"     // job state
	KeyAttempts    = "attempts"  // job attempt counter
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
	KeyContentType = "content_type"
)
