// Package worker provides a worker pool for parallel batch validation.
//
// The worker pool enables efficient validation of many HL7 v2 messages in
// parallel, taking advantage of multi-core processors. Each message gets
// its own pipeline run; nothing is shared between jobs except the
// read-only schema and rule sets.
//
// Example usage:
//
//	eng, _ := engine.New()
//	pool := worker.NewPool(eng, 4)
//
//	// Submit jobs; an empty ID is filled with a UUID
//	for _, raw := range messages {
//	    pool.Submit(worker.Job{Message: raw, RuleSet: rs})
//	}
//
//	// Collect results
//	batch := pool.CloseAndWait()
//	for _, r := range batch.Results {
//	    if r.Error != nil {
//	        // Handle error
//	    }
//	    // Process r.Result
//	}
package worker
