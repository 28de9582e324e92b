package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"
	CodeNotFound           = "NOT_FOUND"

	// Registration and profile validation
	CodeEmailRequired         = "EMAIL_REQUIRED"
	CodeInvalidEmailFormat    = "INVALID_EMAIL_FORMAT"
	CodeEmailAlreadyExists    = "EMAIL_ALREADY_EXISTS"
	CodeUsernameRequired      = "USERNAME_REQUIRED"
	CodeInvalidUsername       = "INVALID_USERNAME"
	CodeUsernameAlreadyExists = "USERNAME_ALREADY_EXISTS"
	CodePasswordRequired      = "PASSWORD_REQUIRED"
	CodePasswordTooShort      = "PASSWORD_TOO_SHORT"
	CodePasswordTooWeak       = "PASSWORD_TOO_WEAK"
	CodeInvalidName           = "INVALID_NAME"
	CodeInvalidPhone          = "INVALID_PHONE"
	CodeBioTooLong            = "BIO_TOO_LONG"
	CodeInvalidProfilePic     = "INVALID_PROFILE_PIC"
	CodeInvalidPagination     = "INVALID_PAGINATION"
	CodeEmailDeliveryFailed   = "EMAIL_DELIVERY_FAILED"

	// Login and session
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeEmailNotVerified     = "EMAIL_NOT_VERIFIED"
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"

	// Access token middleware
	CodeInvalidAuthHeader  = "INVALID_AUTH_HEADER"
	CodeMissingAuth        = "MISSING_AUTH"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID = "INVALID_TOKEN_USER_ID"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"

	// Email verification and password reset
	CodeVerificationTokenRequired = "VERIFICATION_TOKEN_REQUIRED"
	CodeVerificationFailed        = "VERIFICATION_FAILED"
	CodeResetTokenRequired        = "RESET_TOKEN_REQUIRED"
	CodeOTPRequired               = "OTP_REQUIRED"
	CodeInvalidOTP                = "INVALID_OTP"
)
