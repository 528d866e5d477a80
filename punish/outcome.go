package punish

// Action names a best-effort step that follows a record write.
type Action string

const (
	ActionTask    Action = "task"
	ActionEnforce Action = "enforce"
	ActionNotify  Action = "notify"
	ActionAudit   Action = "audit"
)

// Outcome is the result of a best-effort step. A failed step never undoes
// the record that preceded it.
type Outcome struct {
	Action  Action
	Skipped bool
	Err     error
}

// OK reports whether the step ran and succeeded.
func (o Outcome) OK() bool { return !o.Skipped && o.Err == nil }

// Failed reports whether the step ran and failed.
func (o Outcome) Failed() bool { return o.Err != nil }

func skipped(a Action) Outcome { return Outcome{Action: a, Skipped: true} }

func ran(a Action, err error) Outcome { return Outcome{Action: a, Err: err} }
