package schemas

// Outcome is the structured result of every business operation.
type Outcome struct {
	Succeeded bool      `json:"succeeded"`
	Message   string    `json:"message"`
	Kind      ErrorKind `json:"kind,omitempty"`
}

// Success builds a successful outcome.
func Success(msg string) Outcome {
	return Outcome{Succeeded: true, Message: msg}
}

// Failure builds a failed outcome of the given kind.
func Failure(kind ErrorKind, msg string) Outcome {
	return Outcome{Succeeded: false, Message: msg, Kind: kind}
}

// FailureFromError converts a terminal error into an outcome. Business and
// credential kinds carry the short sentinel text ("invalid username"); other
// kinds keep the full error text.
func FailureFromError(err error) Outcome {
	if err == nil {
		return Outcome{}
	}
	kind := KindOf(err)
	switch kind {
	case KindInvalidAccount:
		return Failure(kind, ErrInvalidAccount.Error())
	case KindInvalidAmount:
		return Failure(kind, ErrInvalidAmount.Error())
	case KindCredentialsUnavailable:
		return Failure(kind, ErrCredentialsUnavailable.Error())
	}
	return Failure(kind, err.Error())
}
