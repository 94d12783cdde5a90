package deps

import "strings"

// DecoderName is the executable name of the decoder server.
const DecoderName = "zxingd"

// CheckDecoder reports whether the decoder server binary can be launched.
// An empty command is looked up as zxingd on $PATH.
func CheckDecoder(command string) Status {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		cmd = DecoderName
	}
	results := CheckBinaries([]Requirement{{
		Name:        "Decoder server",
		Command:     cmd,
		Description: "Decodes barcodes for zxing clients",
	}})
	return results[0]
}
