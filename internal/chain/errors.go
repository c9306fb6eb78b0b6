package chain

import "errors"

// Failure classes of remote interaction. Callers match them with errors.Is.
var (
	ErrRemoteRead          = errors.New("remote read failed")
	ErrTxBuild             = errors.New("transaction build failed")
	ErrTxRejected          = errors.New("transaction rejected")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)
