package ipc

import "time"

// ServiceName is the RPC service name registered by the decoder server.
const ServiceName = "Decoder"

const (
	methodDecode       = ServiceName + ".Decode"
	methodDecodeAll    = ServiceName + ".DecodeAll"
	methodQRCodeDecode = ServiceName + ".QRCodeDecode"
	methodStatus       = ServiceName + ".Status"
)

// DecodeRequest names the image file to decode.
type DecodeRequest struct {
	Path string `json:"path"`
}

// DecodeResponse carries a single decoded value.
type DecodeResponse struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

// DecodeAllResponse carries every value decoded from one image.
type DecodeAllResponse struct {
	Found bool     `json:"found"`
	Texts []string `json:"texts"`
}

// StatusRequest fetches decoder server status.
type StatusRequest struct{}

// StatusResponse describes the running decoder server.
type StatusResponse struct {
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
	Decodes   int64     `json:"decodes"`
}

// UndecodableMessage is the fixed text of UndecodableError.
const UndecodableMessage = "Image not decodable"

// UndecodableError reports that an image contains no readable code.
type UndecodableError struct {
	Path string
}

func (e *UndecodableError) Error() string {
	return UndecodableMessage
}
