package inference

import "fmt"

// UpstreamError reports a failed call to the inference endpoint: a transport
// failure, a non-2xx status or an undecodable body.
type UpstreamError struct {
	Model      string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err == nil:
		return fmt.Sprintf("inference %s: status %d: %s", e.Model, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("inference %s: status %d: %v", e.Model, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("inference %s: %v", e.Model, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
