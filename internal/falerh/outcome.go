package falerh

// Reason classifies an expected, non-exceptional failure.
type Reason string

const (
	ReasonNotFound      Reason = "NOT_FOUND"
	ReasonForbidden     Reason = "FORBIDDEN"
	ReasonStateConflict Reason = "STATE_CONFLICT"
)

// Outcome is the explicit result of a state-changing operation. A rejected
// outcome is normal traffic (a lost race, a closed conversation) and is never
// returned as an error; callers must check Applied.
type Outcome struct {
	Applied bool   `json:"applied"`
	Reason  Reason `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func applied() Outcome {
	return Outcome{Applied: true}
}

func rejected(reason Reason, detail string) Outcome {
	return Outcome{Reason: reason, Detail: detail}
}

func (o Outcome) Is(reason Reason) bool {
	return !o.Applied && o.Reason == reason
}
