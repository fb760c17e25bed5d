package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"
	MetricsRoute     = "/metrics"

	AuthParent   = "/v1/auth"
	TokenRoute   = AuthParent + "/token"
	VerifyRoute  = AuthParent + "/verify"
	QuotaRoute   = AuthParent + "/quota"
	AdminParent  = "/v1/admin"
	LoginRoute   = AdminParent + "/login"
	AgentsRoute  = AdminParent + "/agents"
	AgentRoute   = AgentsRoute + "/{id}"
	TokensRoute  = AdminParent + "/tokens"
	AuditsRoute  = AdminParent + "/audit"
	TasksRoute   = AdminParent + "/tasks"
	TriggerRoute = TasksRoute + "/{name}/trigger"
	TaskLogRoute = TasksRoute + "/{name}/logs"
)
