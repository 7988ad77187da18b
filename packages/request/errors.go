package request

import "fmt"

// ConfigurationError reports an invalid request declaration. It is raised
// once when the plan is created, never per execution.
type ConfigurationError struct {
	Request string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("request %q: %s", e.Request, e.Reason)
}
