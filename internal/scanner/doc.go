// Package scanner turns recurring schedule definitions into concrete
// dispatch jobs.
//
// On every tick it selects active schedules whose next-run timestamp has
// elapsed, advances the stored timestamp (the claim), and only then submits
// a job to the dispatch queue. The ordering is the correctness core: once
// the claim is written, a later tick can no longer re-select the same
// occurrence, even if everything after the write fails.
//
// One scanner instance per store. Running several against the same store
// will double-claim; partitioning or locking is a deployment concern.
package scanner
