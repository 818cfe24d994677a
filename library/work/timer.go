package work

import (
	"time"
)

// Scheduler registers delayed and periodic jobs. Task ids are positive; -1
// means the job was rejected because the scheduler is stopped.
type Scheduler interface {
	Len() int
	Once(delay time.Duration, f func()) int64
	Forever(interval time.Duration, f func()) int64
	Cancel(taskID int64)
	Stop()
}

// Executor runs fired jobs, typically a Loop.
type Executor interface {
	Post(job func())
}

const maxIntervalJumps = 10000
