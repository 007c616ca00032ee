package constants

import "time"

const (
	IDRandomBytes = 8

	MaxRequestBodyBytes = 1 << 20

	WSBroadcastBufferSize = 256
	WSClientSendBuffer    = 64

	LeaderboardDefaultSize = 10
	LeaderboardMaxSize     = 100

	OTPCodeTTL           = 10 * time.Minute
	OTPResendCooldown    = 60 * time.Second
	OTPMaxAttempts       = 5
	OTPSendWindow        = time.Hour
	OTPHomeCountrySends  = 5
	OTPForeignSends      = 3
	RegistrationTokenTTL = 10 * time.Minute
)
