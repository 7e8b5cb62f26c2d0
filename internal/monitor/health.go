package monitor

// Health is the classified state of a tunnel.
type Health string

const (
	HealthInactive Health = "inactive"
	HealthDegraded Health = "degraded"
	HealthHealthy  Health = "healthy"
	HealthDown     Health = "down"
)

// ClassifyHealth maps the provider-declared status onto the bounded Health
// enum. An unrecognized or missing status yields nil: "unknown" is a
// distinct outcome, never coerced into one of the four known states.
func ClassifyHealth(declared string) *Health {
	switch h := Health(declared); h {
	case HealthInactive, HealthDegraded, HealthHealthy, HealthDown:
		return &h
	}
	return nil
}
