package errs

const (
	ErrCode_OK                  = 0
	ErrCode_Unknown             = 1
	ErrCode_Registration        = 100 // native facility refused to arm, or invalid request
	ErrCode_UnknownHandle       = 101 // handle not currently registered
	ErrCode_IdentityConflict    = 102 // signal identity already owned by another timer
	ErrCode_PayloadTypeMismatch = 103 // payload read with a type other than the bound one
	ErrCode_Disarm              = 104 // native facility failed to disarm
)

var (
	Unknown             = CreateCodeError(ErrCode_Unknown, "UNKNOWN")
	Registration        = CreateCodeError(ErrCode_Registration, "REGISTRATION")
	UnknownHandle       = CreateCodeError(ErrCode_UnknownHandle, "UNKNOWN_HANDLE")
	IdentityConflict    = CreateCodeError(ErrCode_IdentityConflict, "IDENTITY_CONFLICT")
	PayloadTypeMismatch = CreateCodeError(ErrCode_PayloadTypeMismatch, "PAYLOAD_TYPE_MISMATCH")
	Disarm              = CreateCodeError(ErrCode_Disarm, "DISARM")
)
