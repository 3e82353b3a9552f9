package avatar

import "time"

// Scheduler runs f once after d. Scheduled calls cannot be cancelled.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules on the runtime timer
type TimerScheduler struct{}

// AfterFunc implements Scheduler
func (TimerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
