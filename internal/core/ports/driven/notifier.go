package driven

// Notifier is the fire-and-forget user notification surface (the
// dashboard's toast layer, or a log sink in headless deployments). Calls
// must never block or fail the caller.
type Notifier interface {
	Success(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}
