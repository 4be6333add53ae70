package constants

const (
	AppName   = "cronhook"
	EnvPrefix = "CRONHOOK"
	UserAgent = "cronhook/1.0"

	ContentTypeJSON = "application/json"
)

// Defaults shared by the config layer and the CLI flags.
const (
	DefaultHTTPPort      = 8080
	DefaultMaxConcurrent = 64
	DefaultPageSize      = 20
)

const (
	RunEventsExchange   = "cronhook.runs"
	RunEventsQueue      = "cronhook.runs.finished"
	RunEventsRoutingKey = "run.finished"
)
