package errors

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// UpstreamError describes a failed call to an external HTTP dependency.
type UpstreamError struct {
	Service   string
	Operation string
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Operation, e.Status, e.Body)
}

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain  []string `json:"chain,omitempty"`
	Joined []string `json:"joined,omitempty"`

	UpstreamService   string `json:"upstream_service,omitempty"`
	UpstreamOperation string `json:"upstream_operation,omitempty"`
	UpstreamStatus    int    `json:"upstream_status,omitempty"`
	UpstreamBody      string `json:"upstream_body,omitempty"`
}

// Fields flattens the dump into logger fields, skipping empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 0 {
		fields["error_chain"] = d.Chain
	}
	if len(d.Joined) > 0 {
		fields["error_joined"] = d.Joined
	}
	if d.UpstreamService != "" {
		fields["upstream_service"] = d.UpstreamService
		fields["upstream_operation"] = d.UpstreamOperation
		fields["upstream_status"] = d.UpstreamStatus
	}
	if d.UpstreamBody != "" {
		fields["upstream_body"] = d.UpstreamBody
	}
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if parts := multierr.Errors(err); len(parts) > 1 {
		for _, part := range parts {
			d.Joined = append(d.Joined, part.Error())
		}
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		d.UpstreamService = upstream.Service
		d.UpstreamOperation = upstream.Operation
		d.UpstreamStatus = upstream.Status
		d.UpstreamBody = upstream.Body
	}

	return d
}
