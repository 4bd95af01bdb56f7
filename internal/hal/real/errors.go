package real

import "errors"

var (
	errCRCMismatch = errors.New("1-wire: crc check did not read YES")
	errMalformed   = errors.New("1-wire: temperature line missing t=")
)
