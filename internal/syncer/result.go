package syncer

import "time"

// Result summarizes one sync batch. Failures are recorded per source
// record so a later run can retry just those; the batch as a whole only
// errors on a configuration fault.
type Result struct {
	Processed  int
	Succeeded  int
	Failed     int
	Errors     map[int64]error
	StartedAt  time.Time
	FinishedAt time.Time
}

func newResult() Result {
	return Result{
		Errors:    make(map[int64]error),
		StartedAt: time.Now().UTC(),
	}
}

// Success reports whether every processed record synced.
func (r Result) Success() bool {
	return r.Failed == 0
}

// Duration returns the wall-clock time the batch took.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
