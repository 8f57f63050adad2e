package vision

import "fmt"

// TransportError is a non-2xx HTTP response from the gateway.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("vision api: http %d: %s", e.StatusCode, e.Body)
}

// BusinessError is a 2xx response whose embedded code is not success.
// GatewayCode is set when the API gateway rejected the call before it
// reached the service.
type BusinessError struct {
	Code        int
	GatewayCode string
	Message     string
	RequestID   string
}

func (e *BusinessError) Error() string {
	if e.GatewayCode != "" {
		return fmt.Sprintf("vision api: gateway error %s: %s", e.GatewayCode, e.Message)
	}
	return fmt.Sprintf("vision api: business error %d: %s", e.Code, e.Message)
}

// AuthFailure reports whether the call was rejected by the gateway or for
// missing permissions rather than for its content.
func (e *BusinessError) AuthFailure() bool {
	return e.GatewayCode != "" || e.Code == CodeAccessDenied
}
