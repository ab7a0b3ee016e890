package monitoring

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorSeverity represents error severity levels
type ErrorSeverity int

const (
	LOW ErrorSeverity = iota
	MEDIUM
	HIGH
	CRITICAL
)

func (es ErrorSeverity) String() string {
	switch es {
	case LOW:
		return "LOW"
	case MEDIUM:
		return "MEDIUM"
	case HIGH:
		return "HIGH"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorDetails is one deduplicated failure. Repeats of the same component,
// operation and message bump Count instead of adding a record.
type ErrorDetails struct {
	ID          string                 `json:"id"`
	Message     string                 `json:"message"`
	Error       string                 `json:"error"`
	Severity    string                 `json:"severity"`
	Component   string                 `json:"component"`
	Operation   string                 `json:"operation"`
	RequestID   string                 `json:"request_id,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Path        string                 `json:"path,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Fingerprint string                 `json:"fingerprint"`
	Count       int                    `json:"count"`
	FirstSeen   time.Time              `json:"first_seen"`
	LastSeen    time.Time              `json:"last_seen"`
	Resolved    bool                   `json:"resolved"`
}

// ErrorSummary aggregates unresolved errors per component
type ErrorSummary struct {
	Count        int       `json:"count"`
	LastOccurred time.Time `json:"last_occurred"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
}

// ErrorTracker keeps a bounded, deduplicated set of recent failures.
type ErrorTracker struct {
	mutex     sync.RWMutex
	errors    map[string]*ErrorDetails
	maxErrors int
	retention time.Duration
	now       func() time.Time
}

func NewErrorTracker(maxErrors int, retention time.Duration) *ErrorTracker {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorTracker{
		errors:    make(map[string]*ErrorDetails),
		maxErrors: maxErrors,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CaptureError records a failure and returns a copy of the stored record.
func (et *ErrorTracker) CaptureError(component, operation, message string, err error, severity ErrorSeverity, context map[string]interface{}) ErrorDetails {
	now := et.now()
	details := &ErrorDetails{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity.String(),
		Component: component,
		Operation: operation,
		Context:   context,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if err != nil {
		details.Error = err.Error()
	}
	details.Fingerprint = fingerprint(component, operation, message)

	et.mutex.Lock()
	defer et.mutex.Unlock()

	et.prune(now)
	if existing, ok := et.errors[details.Fingerprint]; ok {
		existing.Count++
		existing.LastSeen = now
		existing.Error = details.Error
		existing.Severity = details.Severity
		existing.Resolved = false
		if context != nil {
			existing.Context = context
		}
		return *existing
	}

	if len(et.errors) >= et.maxErrors {
		et.evictOldest()
	}
	et.errors[details.Fingerprint] = details
	return *details
}

// CaptureRequestError records a failure with the request's method, path and ID.
func (et *ErrorTracker) CaptureRequestError(c *gin.Context, message string, err error, severity ErrorSeverity) ErrorDetails {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	details := et.CaptureError("http", c.Request.Method+" "+path, message, err, severity, map[string]interface{}{
		"status": c.Writer.Status(),
		"ip":     c.ClientIP(),
	})

	et.mutex.Lock()
	if stored, ok := et.errors[details.Fingerprint]; ok {
		stored.Method = c.Request.Method
		stored.Path = c.Request.URL.Path
		stored.RequestID = c.GetString("request_id")
		details = *stored
	}
	et.mutex.Unlock()
	return details
}

// GetErrors returns tracked errors, most recent first
func (et *ErrorTracker) GetErrors(resolved bool, limit int) []ErrorDetails {
	et.mutex.RLock()
	defer et.mutex.RUnlock()

	list := make([]ErrorDetails, 0, len(et.errors))
	for _, e := range et.errors {
		if e.Resolved == resolved {
			list = append(list, *e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].LastSeen.After(list[j].LastSeen) })

	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// GetErrorSummary returns unresolved error counts keyed by component
func (et *ErrorTracker) GetErrorSummary() map[string]ErrorSummary {
	et.mutex.RLock()
	defer et.mutex.RUnlock()

	summary := make(map[string]ErrorSummary)
	for _, e := range et.errors {
		if e.Resolved {
			continue
		}
		key := e.Component
		if key == "" {
			key = "unknown"
		}
		s, ok := summary[key]
		s.Count += e.Count
		if !ok || e.LastSeen.After(s.LastOccurred) {
			s.LastOccurred = e.LastSeen
			s.Severity = e.Severity
			s.Message = e.Message
		}
		summary[key] = s
	}
	return summary
}

func (et *ErrorTracker) ResolveError(fingerprint string) error {
	et.mutex.Lock()
	defer et.mutex.Unlock()

	e, ok := et.errors[fingerprint]
	if !ok {
		return fmt.Errorf("error with fingerprint %s not found", fingerprint)
	}
	e.Resolved = true
	return nil
}

// ErrorTrackingMiddleware records errors attached to the gin context and
// any 5xx response.
func (et *ErrorTracker) ErrorTrackingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		severity := MEDIUM
		if status >= http.StatusInternalServerError {
			severity = HIGH
		}

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors {
				et.CaptureRequestError(c, ginErr.Error(), ginErr.Err, severity)
			}
			return
		}
		if status >= http.StatusInternalServerError {
			et.CaptureRequestError(c, http.StatusText(status), nil, severity)
		}
	}
}

// prune drops records older than the retention window. Caller holds the lock.
func (et *ErrorTracker) prune(now time.Time) {
	if et.retention <= 0 {
		return
	}
	cutoff := now.Add(-et.retention)
	for fp, e := range et.errors {
		if e.LastSeen.Before(cutoff) {
			delete(et.errors, fp)
		}
	}
}

func (et *ErrorTracker) evictOldest() {
	var oldest string
	var oldestTime time.Time
	for fp, e := range et.errors {
		if oldest == "" || e.LastSeen.Before(oldestTime) {
			oldest = fp
			oldestTime = e.LastSeen
		}
	}
	delete(et.errors, oldest)
}

func fingerprint(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
