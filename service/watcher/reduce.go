package watcher

import "github.com/pandodao/beanpay/core"

type Source string

const (
	SourcePush Source = "push"
	SourcePoll Source = "poll"
)

// Event is one status observation from either channel.
type Event struct {
	Source Source
	Status core.SessionStatus
}

// Outcome is the folded result. Status stays pending until a terminal event
// arrives; Source names the channel that delivered it.
type Outcome struct {
	Status core.SessionStatus `json:"status"`
	Source Source             `json:"source,omitempty"`
}

func (o Outcome) Terminal() bool {
	return o.Status.Terminal()
}

// Reduce folds ev into o. The first terminal event wins; a later terminal
// event with a different status is reported as a conflict and dropped.
func Reduce(o Outcome, ev Event) (next Outcome, conflict bool) {
	if o.Terminal() {
		return o, ev.Status.Terminal() && ev.Status != o.Status
	}

	if ev.Status.Terminal() {
		return Outcome{Status: ev.Status, Source: ev.Source}, false
	}

	return Outcome{Status: core.SessionStatusPending}, false
}
