package contract

import "time"

type Stage string

const (
	StageReceived         Stage = "received"
	StageIntentsEligible  Stage = "intents_eligible"
	StageIntentClassified Stage = "intent_classified"
	StagePlanCreated      Stage = "plan_created"
	StagePlanCommunicated Stage = "plan_communicated"
	StagePolicyCheck      Stage = "policy_check"
	StageToolExecute      Stage = "tool_execute"
	StageRespond          Stage = "respond"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Event struct {
	Timestamp     time.Time      `json:"timestamp"`
	InteractionID string         `json:"interaction_id"`
	SessionID     string         `json:"session_id"`
	Stage         Stage          `json:"stage"`
	Level         Level          `json:"level"`
	Payload       map[string]any `json:"payload,omitempty"`
}
