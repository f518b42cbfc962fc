package limits

// Size limits for session API payloads and captured backend output

const (
	// JSON is the standard size limit for API request/response payloads (1MB)
	JSON = 1 << 20

	// ErrorBody is the maximum size for error response bodies (1KB)
	// Used when parsing error messages from failed API calls
	ErrorBody = 1024

	// Stdout is the maximum number of bytes captured from one backend invocation (8MB).
	// Anything beyond is discarded so the child never blocks on a full pipe.
	Stdout = 8 << 20

	// Stderr is the maximum number of bytes of backend diagnostics kept (64KB)
	Stderr = 64 << 10

	// JournalMessage caps the error text stored per journal row
	JournalMessage = 4096
)
