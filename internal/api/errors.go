package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"surfpass/internal/approval"
	"surfpass/internal/auth"
	"surfpass/internal/checkin"
	"surfpass/internal/constants"
	"surfpass/internal/identity"
	"surfpass/internal/ledger"
	"surfpass/internal/otp"
	"surfpass/internal/phone"
	"surfpass/internal/referral"
)

// writeDomainError maps an error returned by a domain package onto the
// response envelope. Unknown errors are logged and reported as internal.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cooldown  *otp.ErrResendCooldown
		sendLimit *otp.ErrSendLimitReached
		badCode   *otp.ErrInvalidCode
		conflict  *identity.ErrConflict
		profile   *identity.ErrInvalidProfile
	)

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		unauthenticated(w)

	case errors.Is(err, phone.ErrInvalidPhone):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidPhone, "phone", "Invalid phone number")
	case errors.As(err, &cooldown):
		w.Header().Set("Retry-After", strconv.Itoa(cooldown.Seconds))
		writeError(w, http.StatusTooManyRequests, constants.ErrCodeResendCooldown, cooldown.Error())
	case errors.As(err, &sendLimit):
		w.Header().Set("Retry-After", strconv.Itoa(sendLimit.Seconds))
		writeError(w, http.StatusTooManyRequests, constants.ErrCodeSendLimitReached, sendLimit.Error())
	case errors.As(err, &badCode):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidCode, "code", badCode.Error())
	case errors.Is(err, otp.ErrExpired):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeOTPExpired, "code", err.Error())
	case errors.Is(err, otp.ErrNoActiveChallenge):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeNoActiveChallenge, "code", err.Error())
	case errors.Is(err, otp.ErrAttemptsExhausted):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeAttemptsExhausted, "code", err.Error())
	case errors.Is(err, otp.ErrDelivery):
		writeError(w, http.StatusServiceUnavailable, constants.ErrCodeUpstream, err.Error())
	case errors.Is(err, otp.ErrInvalidPurpose), errors.Is(err, identity.ErrInvalidPurpose):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, "purpose", err.Error())

	case errors.Is(err, identity.ErrUnknownRole):
		notFound(w, "Unknown portal")
	case errors.Is(err, identity.ErrAlreadyRegistered):
		writeFieldError(w, http.StatusConflict, constants.ErrCodeAlreadyRegistered, "phone", err.Error())
	case errors.As(err, &conflict):
		writeFieldError(w, http.StatusConflict, constants.ErrCodeConflict, conflict.Field, conflict.Error())
	case errors.As(err, &profile):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, profile.Field, profile.Message)

	case errors.Is(err, referral.ErrInvalidReferral):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidReferral, "referralCode", err.Error())

	case errors.Is(err, ledger.ErrForbidden), errors.Is(err, checkin.ErrForbidden):
		unauthenticated(w)
	case errors.Is(err, approval.ErrForbidden):
		forbidden(w, err.Error())
	case errors.Is(err, approval.ErrNotFound), errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrEntryNotFound), errors.Is(err, checkin.ErrAccountNotFound):
		notFound(w, err.Error())
	case errors.Is(err, approval.ErrInvalidTransition):
		writeError(w, http.StatusConflict, constants.ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, approval.ErrInvalidAction):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, "action", err.Error())

	case errors.Is(err, ledger.ErrInvalidAmount):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidAmount, "amount", err.Error())
	case errors.Is(err, ledger.ErrInvalidEntry):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, "description", err.Error())
	case errors.Is(err, ledger.ErrInvalidPhoto):
		writeFieldError(w, http.StatusBadRequest, constants.ErrCodePhotoInvalid, "photoRef", err.Error())

	default:
		slog.Error("unhandled request error", "method", r.Method, "path", r.URL.Path, "error", err)
		internalError(w)
	}
}
