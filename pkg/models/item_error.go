package models

// ErrorKind classifies a per-item failure. None of them abort a batch.
type ErrorKind string

const (
	// ErrorKindRecovery means the service answer could not be turned into JSON.
	ErrorKindRecovery ErrorKind = "recovery"
	// ErrorKindTransport covers connection errors, timeouts and non-2xx replies.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindShape means the evaluations were empty, not two-dimensional,
	// non-numeric or had a different criteria count.
	ErrorKindShape ErrorKind = "shape"
)

// ItemError reports why one file contributed nothing, or less than expected.
type ItemError struct {
	FileName string    `json:"file_name"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}
