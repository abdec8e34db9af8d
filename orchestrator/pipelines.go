package orchestrator

import "github.com/intervu-ai/agentcore/workflow"

// Agent names used by the prebuilt pipelines. Callers register their own
// executors under these names before building the pipelines.
const (
	AgentJobAnalyzer        = "job_analyzer"
	AgentResumeTailor       = "resume_tailor"
	AgentLetterGenerator    = "letter_generator"
	AgentMessagingGenerator = "messaging_generator"
	AgentEvaluation         = "evaluation_agent"
	AgentCoaching           = "coaching_agent"
)

// CareerApplicationWorkflow builds the job-application pipeline:
// job analysis -> resume tailoring -> letter generation -> outreach
// messaging. Fails with AGENT_NOT_FOUND if any stage is unregistered.
func CareerApplicationWorkflow(o *Orchestrator) (*workflow.Sequential, error) {
	return o.SequentialWorkflow("career_application_pipeline",
		AgentJobAnalyzer,
		AgentResumeTailor,
		AgentLetterGenerator,
		AgentMessagingGenerator,
	)
}

// InterviewEvaluationWorkflow builds the interview-evaluation pipeline:
// answer evaluation -> coaching feedback.
func InterviewEvaluationWorkflow(o *Orchestrator) (*workflow.Sequential, error) {
	return o.SequentialWorkflow("interview_evaluation_pipeline",
		AgentEvaluation,
		AgentCoaching,
	)
}
