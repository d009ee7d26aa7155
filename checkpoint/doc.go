// Package checkpoint locates trained Polygames checkpoints and records the
// outcome of conversion runs.
//
// # Checkpoint Layout
//
// Training jobs write their checkpoints to
//
//	{dir}/server-{jobid}/checkpoint_{epoch}.pt
//
// Locate picks one file according to a Selector (highest epoch by default):
//
//	res, err := checkpoint.Locate(dir, checkpoint.Highest)
//	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
//	    // nothing trained yet, skip
//	}
//
// # Run Manifests
//
// A Manager records every conversion of a batch run so that an interrupted
// run can be resumed without redoing finished conversions:
//
//	mgr := checkpoint.NewManager(manifestDir, runID, "zeroshot")
//	mgr.Record(checkpoint.JobRecord{Output: out, Status: checkpoint.StatusConverted})
//
// Manifests are stored at
//
//	{manifestDir}/{runID}/manifest.json
//	{manifestDir}/{runID}/jobs.jsonl
package checkpoint
