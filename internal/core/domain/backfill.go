package domain

import "time"

// BackfillProgress reports an embedding backfill run.
// Total is fixed when the run starts, so documents that become
// vector-less during the run never make the progress regress.
type BackfillProgress struct {
	// Running indicates a run is active.
	Running bool

	// Completed is the number of documents that received a vector this run.
	Completed int

	// Total is the number of vector-less documents when the run started.
	Total int

	// Batches is the number of batches committed this run.
	Batches int

	// Failed is the number of documents whose batch failed permanently.
	Failed int

	// Cancelled indicates the run stopped at a batch boundary on request.
	Cancelled bool

	// LastError holds the error that ended the run, if any.
	LastError string

	// StartedAt is when the run started.
	StartedAt time.Time

	// EndedAt is when the run finished.
	EndedAt time.Time
}

// Fraction returns completion in [0, 1].
func (p BackfillProgress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	if p.Completed >= p.Total {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}
