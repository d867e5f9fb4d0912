package worker

import "errors"

// IngestPagePayload is the body of a message on the ingest.page topic.
type IngestPagePayload struct {
	URL           string `json:"url"`
	CorrelationID string `json:"correlation_id"`
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The consumer acknowledges the
// message instead of requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
