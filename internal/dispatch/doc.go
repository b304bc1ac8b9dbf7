// Package dispatch executes claimed schedule occurrences.
//
// Jobs are keyed by schedule id: at any time a schedule has at most one
// pending (immediate or delayed) job in the queue. SchedulePost arms it,
// CancelPost removes it, and the worker pool runs it through the Executor
// when due.
//
// The queue owns the retry decision. Failures are classified by their
// outcome code: terminal codes discard the job immediately; retryable codes
// re-arm the same job with exponential backoff until MaxAttempts is reached,
// after which the job is reported as exhausted and dropped. Workers never
// sleep through a backoff window; delayed jobs wait on their own timer.
package dispatch
