package tracing

// Span attribute keys for workflow tracing.
const (
	// Workflow attributes
	AttrWorkflowID     = "workflow.id"
	AttrWorkflowStatus = "workflow.status"
	AttrStepCount      = "workflow.step_count"

	// Step attributes
	AttrStepIndex = "step.index"
	AttrStepAgent = "step.agent"

	// Agent attributes
	AttrAgentID        = "agent.id"
	AttrPromptChars    = "prompt.chars"
	AttrResponseChars  = "response.chars"
	AttrAttachmentSize = "attachment.bytes"

	// Error attributes
	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span names for consistent naming.
const (
	SpanWorkflowStart = "workflow.start"
	SpanWorkflowStep  = "workflow.step"
	SpanBuildPrompt   = "workflow.build_prompt"
	SpanInvokeAgent   = "workflow.invoke_agent"
	SpanPersist       = "workflow.persist"
)

// Event names for span events.
const (
	EventPlanCreated     = "plan.created"
	EventStepCompleted   = "step.completed"
	EventStepFailed      = "step.failed"
	EventWorkflowHalted  = "workflow.halted"
	EventCancelRequested = "cancel.requested"
)
