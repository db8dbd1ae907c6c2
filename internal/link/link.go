// Package link abstracts the underlying wireless association. The
// lifecycle machine issues one connect per entry into link acquisition
// and polls status without blocking.
package link

// Status is the association state of the link.
type Status int

const (
	StatusDown Status = iota
	StatusConnecting
	StatusUp
)

func (s Status) String() string {
	switch s {
	case StatusDown:
		return "down"
	case StatusConnecting:
		return "connecting"
	case StatusUp:
		return "up"
	}
	return "unknown"
}

// Link is the wireless driver. Connect issues the association request
// and returns immediately; progress is observed through Status.
type Link interface {
	Connect(ssid, password string) error
	Status() Status
}

// Loopback is a Link that is up as soon as it is asked to connect. Used
// on hosts whose network is managed outside the terminal process, and in
// tests.
type Loopback struct {
	status Status
}

// Connect implements Link.
func (l *Loopback) Connect(ssid, password string) error {
	l.status = StatusUp
	return nil
}

// Status implements Link.
func (l *Loopback) Status() Status { return l.status }
