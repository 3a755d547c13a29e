// Package tracker applies track and untrack operations to a session's PID
// tracker through a session-control service.
package tracker

import (
	"errors"
	"fmt"
)

// Domain is the tracing subsystem a tracker belongs to.
type Domain int

// Domains.
const (
	DomainKernel Domain = iota + 1
	DomainUserspace
)

// ErrDomainNotSpecified is returned when zero or both domains are selected.
var ErrDomainNotSpecified = errors.New("exactly one domain must be specified")

// ResolveDomain picks the domain from the --kernel and --userspace flags.
func ResolveDomain(kernel, userspace bool) (Domain, error) {
	switch {
	case kernel == userspace:
		return 0, ErrDomainNotSpecified
	case kernel:
		return DomainKernel, nil
	default:
		return DomainUserspace, nil
	}
}

// ParseDomain is the inverse of Domain.String.
func ParseDomain(s string) (Domain, error) {
	switch s {
	case "kernel":
		return DomainKernel, nil
	case "userspace":
		return DomainUserspace, nil
	default:
		return 0, fmt.Errorf("unknown domain %q", s)
	}
}

func (d Domain) String() string {
	switch d {
	case DomainKernel:
		return "kernel"
	case DomainUserspace:
		return "userspace"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

// Domains lists every domain in display order.
func Domains() []Domain {
	return []Domain{DomainKernel, DomainUserspace}
}
