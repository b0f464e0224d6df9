package health

import "context"

// HealthPinger is implemented by components with a cheap liveness probe,
// such as the SQL store drivers. HealthPing returns nil when healthy.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
