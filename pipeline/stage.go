package pipeline

// StageStatus is the tri-state outcome of a pipeline stage.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageDegraded  StageStatus = "degraded"
	StageFailed    StageStatus = "failed"
)

// StageResult is what every stage returns. Stages never return Go errors
// and never panic across this boundary; failures travel as values so the
// orchestrator can always compose a renderable outcome.
type StageResult struct {
	Status   StageStatus
	ImageURL string // output image, or the stage input when not succeeded
	Message  string // human readable note for the run narrative
}

func succeededStage(imageURL string) StageResult {
	return StageResult{Status: StageSucceeded, ImageURL: imageURL}
}

func degradedStage(imageURL, message string) StageResult {
	return StageResult{Status: StageDegraded, ImageURL: imageURL, Message: message}
}

func failedStage(originalRef, message string) StageResult {
	return StageResult{Status: StageFailed, ImageURL: originalRef, Message: message}
}
