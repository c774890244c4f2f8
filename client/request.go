package client

import (
	"fmt"
	"strings"

	"github.com/plgd-dev/go-coap/v3/message/codes"
)

// Request is a single exchange with the device. Only PUT carries a payload.
type Request struct {
	Method  codes.Code
	Path    string
	Payload []byte
}

// Response is what the device answered.
type Response struct {
	Code    codes.Code
	Payload []byte
}

func ParseMethod(s string) (codes.Code, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GET":
		return codes.GET, nil
	case "PUT":
		return codes.PUT, nil
	case "DELETE":
		return codes.DELETE, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

func (r Request) Validate() error {
	switch r.Method {
	case codes.GET, codes.DELETE:
		if len(r.Payload) > 0 {
			return fmt.Errorf("%v %v: %w", r.Method, r.Path, ErrUnexpectedPayload)
		}
	case codes.PUT:
		// An empty payload is allowed, the shoe resets the resource to its default.
	default:
		return fmt.Errorf("%w: %v", ErrUnknownMethod, r.Method)
	}
	if strings.Trim(r.Path, "/") == "" {
		return ErrEmptyPath
	}
	return nil
}

// URI joins the request path with the target as scheme://target/path.
func (r Request) URI(scheme, target string) string {
	return scheme + "://" + target + "/" + strings.TrimPrefix(r.Path, "/")
}

// FormatCode renders a response code in the dotted class.detail form, e.g. "2.05 Content".
func FormatCode(c codes.Code) string {
	return fmt.Sprintf("%d.%02d %v", uint8(c)>>5, uint8(c)&0x1f, c)
}

// Success reports whether the code belongs to the 2.xx class.
func (r Response) Success() bool {
	return uint8(r.Code)>>5 == 2
}
