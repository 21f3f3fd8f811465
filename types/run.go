package types

const (
	STEP_STATUS_PENDING   = "pending"
	STEP_STATUS_RUNNING   = "running"
	STEP_STATUS_COMPLETED = "completed"
	STEP_STATUS_FAILED    = "failed"
)

const (
	StepDiagramExtraction  = "diagram_extraction"
	StepDiagramMapping     = "diagram_mapping"
	StepMarksMapping       = "marks_mapping"
	StepQuestionExtraction = "question_extraction"
	StepCardGeneration     = "card_generation"
)

// PipelineSteps is the canonical step order for one run.
var PipelineSteps = []string{
	StepDiagramExtraction,
	StepDiagramMapping,
	StepMarksMapping,
	StepQuestionExtraction,
	StepCardGeneration,
}

type StepResult struct {
	Name       string `json:"name" bson:"name"`
	Status     string `json:"status" bson:"status"`
	Error      string `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  int64  `json:"started_at,omitempty" bson:"started_at,omitempty"`
	FinishedAt int64  `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}

// PipelineRun tracks one paper through the five pipeline steps. A failed
// step is recorded and the run continues; Status reflects the worst case.
type PipelineRun struct {
	ID       string       `json:"id" bson:"_id,omitempty"`
	Paper    string       `json:"paper" bson:"paper"`
	PDFPath  string       `json:"pdf_path" bson:"pdf_path"`
	Status   string       `json:"status" bson:"status"`
	Steps    []StepResult `json:"steps" bson:"steps"`
	Summary  *CardSummary `json:"summary,omitempty" bson:"summary,omitempty"`
	CreateAt int64        `json:"created_at" bson:"created_at"`
	UpdateAt int64        `json:"updated_at" bson:"updated_at"`
}

const (
	RUN_STATUS_RUNNING   = "running"
	RUN_STATUS_COMPLETED = "completed"
	RUN_STATUS_DEGRADED  = "degraded"
	RUN_STATUS_FAILED    = "failed"
)

const (
	TypeWebsocketPing     = "ping"
	TypeWebsocketPong     = "pong"
	TypeWebsocketProgress = "progress"
	TypeWebsocketError    = "error"
)

type WebsocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProgressEvent is one step transition broadcast to progress subscribers.
type ProgressEvent struct {
	RunID     string `json:"run_id"`
	Paper     string `json:"paper"`
	Step      string `json:"step"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"ts"`
}
