package report

import (
	"errors"
	"fmt"
	"io"

	"fwinfo/pkg/firmware"
)

// NotFirmware explains why name was rejected before any block was read.
func NotFirmware(w io.Writer, name string, err error) {
	var sigErr *firmware.UnknownSignatureError
	if errors.As(err, &sigErr) {
		fmt.Fprintf(w, "Unknown file signature 0x%08X", sigErr.Signature)
	} else {
		fmt.Fprintf(w, "Error reading firmware block header")
	}
	fmt.Fprintf(w, ".\n%q does not seem to be a Mi Walkie-talkie firmware file.\n\n", name)
}

// RepairFailed is printed before the process terminates on a failed rewrite.
func RepairFailed(w io.Writer, err error) {
	fmt.Fprintf(w, "Error writing firmware block header: %v\nProcess terminated.\n\n", err)
}
