package actor

import "fmt"

// Guard names the authentication scope an actor belongs to. Users and
// admins are disjoint identity spaces: the same numeric ID under
// different guards is two different actors.
type Guard string

const (
	GuardUser  Guard = "user"
	GuardAdmin Guard = "admin"
)

func (g Guard) Valid() bool {
	return g == GuardUser || g == GuardAdmin
}

// Ref identifies the acting actor. It is threaded explicitly through
// every lifecycle call so audit stamps and notifications never depend
// on ambient request state.
type Ref struct {
	Guard Guard
	ID    uint
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Guard, r.ID)
}

func (r Ref) IsZero() bool {
	return r.ID == 0 || !r.Guard.Valid()
}
