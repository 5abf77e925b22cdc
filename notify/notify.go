// Package notify carries user-visible failure notices from the board store
// to whatever surface displays them.
package notify

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Kind identifies which board operation failed.
type Kind string

const (
	KindLoad   Kind = "load"
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Notice is a single transient message.
type Notice struct {
	Kind    Kind
	Message string
	Err     error
	At      time.Time
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Multi fans a notice out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

// LogSink writes notices through logrus at warn level.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Notify(n Notice) {
	l := s.Logger
	if l == nil {
		l = log.StandardLogger()
	}
	entry := l.WithField("kind", string(n.Kind))
	if n.Err != nil {
		entry = entry.WithError(n.Err)
	}
	entry.Warn(n.Message)
}
