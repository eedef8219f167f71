package domain

import "time"

// ScanReason describes why a path was queued for processing.
type ScanReason string

const (
	// ScanReasonNew indicates a file not seen before.
	ScanReasonNew ScanReason = "new"

	// ScanReasonModified indicates a known file whose size or mtime changed.
	ScanReasonModified ScanReason = "modified"

	// ScanReasonRemoved indicates a known file that no longer exists.
	ScanReasonRemoved ScanReason = "removed"

	// ScanReasonManual indicates an explicit rescan request.
	ScanReasonManual ScanReason = "manual-rescan"
)

// ScanTask is an ephemeral unit of indexing work. Tasks are not persisted;
// they are recreated from watcher events or a full rescan.
type ScanTask struct {
	// Path is the absolute file path.
	Path string

	// Root is the configured root directory the path belongs to.
	Root string

	// Reason is why the task was queued.
	Reason ScanReason

	// Size and ModifiedAt are the file attributes observed at scan time.
	// Zero for removed tasks.
	Size       int64
	ModifiedAt time.Time
}

// ScanError reports a non-fatal problem encountered during a scan,
// such as an unreadable directory. Scanning continues with siblings.
type ScanError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	return "scan " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Err
}
