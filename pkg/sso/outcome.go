package sso

import "errors"

// OutcomeKind is the result class of one authentication attempt
type OutcomeKind int

const (
	// OutcomeRedirect sends the user agent to the broker. Initiation only.
	OutcomeRedirect OutcomeKind = iota + 1
	// OutcomeSuccess means the verifier accepted a user
	OutcomeSuccess
	// OutcomeFail is a client-correctable rejection (401-class)
	OutcomeFail
	// OutcomeError is a server-side fault (500-class)
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeSuccess:
		return "success"
	case OutcomeFail:
		return "fail"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the single result of Strategy.Authenticate
type Outcome struct {
	Kind  OutcomeKind
	Phase Phase

	// RedirectURL is set for OutcomeRedirect
	RedirectURL string

	// User and Info are set for OutcomeSuccess
	User interface{}
	Info interface{}

	// Reason is the human readable message of OutcomeFail
	Reason string

	// Err is the cause of OutcomeError, and of OutcomeFail when one exists
	Err error
}

// Sink receives outcomes on behalf of the embedding framework
type Sink interface {
	Redirect(url string)
	Success(user, info interface{})
	Fail(reason string)
	Error(err error)
}

// Deliver calls exactly one Sink method for the outcome
func (o Outcome) Deliver(s Sink) {
	switch o.Kind {
	case OutcomeRedirect:
		s.Redirect(o.RedirectURL)
	case OutcomeSuccess:
		s.Success(o.User, o.Info)
	case OutcomeFail:
		s.Fail(o.Reason)
	default:
		err := o.Err
		if err == nil {
			err = errors.New("sso: outcome without result")
		}
		s.Error(err)
	}
}

func redirectOutcome(url string) Outcome {
	return Outcome{Kind: OutcomeRedirect, Phase: PhaseInitiate, RedirectURL: url}
}

func successOutcome(user, info interface{}) Outcome {
	return Outcome{Kind: OutcomeSuccess, Phase: PhaseCallback, User: user, Info: info}
}

func failOutcome(phase Phase, reason string, err error) Outcome {
	if reason == "" && err != nil {
		reason = err.Error()
	}
	return Outcome{Kind: OutcomeFail, Phase: phase, Reason: reason, Err: err}
}

func errorOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeError, Phase: PhaseCallback, Err: err}
}
