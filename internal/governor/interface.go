package governor

// WorkerPoolController is the external worker pool the governor steers.
// Implementations are expected to return quickly; the poll loop never
// waits on anything beyond the call itself, and a returned error means
// delivery could not be confirmed.
type WorkerPoolController interface {
	SetThreadCount(n int, reason string) error
	Pause(reason string) error
	Resume(reason string) error
}

// WorkloadStatus is a point-in-time copy of the governed workload's
// bookkeeping
type WorkloadStatus struct {
	BaselineThreads  int
	CurrentThreads   int
	Active           bool
	PausedForThermal bool
}
