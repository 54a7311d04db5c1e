package models

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusPendente Status = "PENDENTE" // waiting for an admin to accept
	StatusAberta   Status = "ABERTA"   // accepted, both sides may write
	StatusFechada  Status = "FECHADA"  // terminal
)

// transitions lists the only forward moves a conversation can make.
var transitions = map[Status][]Status{
	StatusPendente: {StatusAberta, StatusFechada},
	StatusAberta:   {StatusFechada},
	StatusFechada:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether s is a known status with no way out.
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Role is the normalized side of a principal.
type Role string

const (
	RoleColab Role = "COLAB"
	RoleAdmin Role = "ADMIN"
)

func (r Role) String() string {
	return string(r)
}

type MessageKind string

const (
	KindPreset MessageKind = "PRESET"
	KindTexto  MessageKind = "TEXTO"
)
