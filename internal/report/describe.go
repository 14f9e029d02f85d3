package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/liveplugin/internal/plugin/runner"
)

// Description is a failure rendered for display.
type Description struct {
	Type    string
	Message string
	Stack   string
}

// Describe renders err for display. Running failures are unwrapped to the
// error the script raised and keep its script stack.
func Describe(err error) Description {
	if err == nil {
		return Description{}
	}

	d := Description{Message: err.Error()}
	cause := err

	var rf *runner.RunningFailure
	if errors.As(err, &rf) {
		d.Stack = rf.Stack
		if rf.Cause != nil {
			cause = rf.Cause
		}
	}

	d.Type = fmt.Sprintf("%T", cause)
	d.Message = cause.Error()
	return d
}

// String formats the description as "Type: message" followed by the stack.
func (d Description) String() string {
	var b strings.Builder
	if d.Type != "" {
		b.WriteString(d.Type)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	if d.Stack != "" {
		b.WriteString("\n")
		b.WriteString(d.Stack)
	}
	return b.String()
}
