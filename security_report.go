package gatewayauth

import "github.com/vrental/gatewayauth/internal/security"

// SecurityReport lists which checks are active and whether each fails open
// or closed when its backing store is down.
type SecurityReport = security.Report

// Posture values used in [SecurityReport].
const (
	PostureFailOpen   = security.FailOpen
	PostureFailClosed = security.FailClosed
	PostureDisabled   = security.Disabled
)
