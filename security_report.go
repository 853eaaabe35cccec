package fileshare

import "time"

// SecurityReport summarizes the protections an Engine runs with. Binaries log it at
// startup so operators can spot a weakened deployment.
type SecurityReport struct {
	SigningAlgorithm     string
	EphemeralSigningKey  bool
	OwnerTokenTTL        time.Duration
	SessionTTL           time.Duration
	TransferTimeout      time.Duration
	CodeSpace            int
	CodePolicy           string
	FetchThrottleActive  bool
	MaxFetchFailures     int
	UploadThrottleActive bool
	MaxUploadsPerWindow  int
	MaxFileSize          int64
	TrustProxy           bool
	AuditEnabled         bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		SigningAlgorithm:     e.config.Token.SigningMethod,
		EphemeralSigningKey:  e.ephemeralKey,
		OwnerTokenTTL:        e.config.Token.TTL,
		SessionTTL:           e.config.Session.TTL,
		TransferTimeout:      e.config.Session.TransferTimeout,
		CodeSpace:            int(e.config.InviteCode.Max) - int(e.config.InviteCode.Min) + 1,
		CodePolicy:           e.config.InviteCode.Policy,
		FetchThrottleActive:  e.config.Security.EnableFetchThrottle,
		UploadThrottleActive: e.config.Security.EnableUploadThrottle,
		MaxFileSize:          e.config.Upload.MaxFileSize,
		TrustProxy:           e.config.Security.TrustProxy,
		AuditEnabled:         e.config.Audit.Enabled,
	}
	if report.FetchThrottleActive {
		report.MaxFetchFailures = e.config.Security.MaxFetchFailures
	}
	if report.UploadThrottleActive {
		report.MaxUploadsPerWindow = e.config.Security.MaxUploadsPerWindow
	}
	return report
}
