package domain

// StageEvent is one stage transition of a pipeline run, journaled for
// analytics. Corresponds to stage_events table in ClickHouse.
type StageEvent struct {
	AttemptID string // pipeline attempt id
	Seq       int32  // position within the run, 0-based
	Stage     string // FETCHING, DECODING, ...
	State     string // STARTED | OK | FAILED
	Detail    string // human-readable message
	At        int64  // Unix timestamp in milliseconds
}
