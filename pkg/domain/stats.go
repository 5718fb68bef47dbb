package domain

// DebugStats is an aggregate view over all debug sessions of a registry.
type DebugStats struct {
	ActiveSessions      int                     `json:"activeSessions"`
	TotalSessions       int                     `json:"totalSessions"`
	TotalBreakpoints    int                     `json:"totalBreakpoints"`
	SessionsByStatus    map[ExecutionStatus]int `json:"sessionsByStatus"`
	BotsWithBreakpoints int                     `json:"botsWithBreakpoints"`
}
