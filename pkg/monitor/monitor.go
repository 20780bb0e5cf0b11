package monitor

import "context"

// Monitor is one of the long-running loops started by main. Run blocks until
// ctx is cancelled.
type Monitor interface {
	Run(ctx context.Context)
	Name() string
}
