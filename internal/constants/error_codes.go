package constants

const (
	// Shared transport-agnostic errors
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeUpstream        = "UPSTREAM_UNAVAILABLE"
	ErrCodePhotoInvalid    = "PHOTO_INVALID"

	// OTP errors, all recoverable by requesting a new code
	ErrCodeInvalidPhone      = "INVALID_PHONE"
	ErrCodeResendCooldown    = "OTP_RESEND_COOLDOWN"
	ErrCodeSendLimitReached  = "OTP_SEND_LIMIT_REACHED"
	ErrCodeOTPExpired        = "OTP_EXPIRED"
	ErrCodeNoActiveChallenge = "OTP_NO_ACTIVE_CHALLENGE"
	ErrCodeInvalidCode       = "OTP_INVALID_CODE"
	ErrCodeAttemptsExhausted = "OTP_ATTEMPTS_EXHAUSTED"

	// Business rules
	ErrCodeInvalidReferral    = "INVALID_REFERRAL"
	ErrCodeAlreadyRegistered  = "ALREADY_REGISTERED"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeInvalidAmount      = "INVALID_AMOUNT"
	ErrCodeRegistrationDenied = "REGISTRATION_DENIED"
)
