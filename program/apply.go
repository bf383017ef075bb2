package program

import (
	"fmt"
)

// RejectReason classifies why an edit was refused.
type RejectReason string

const (
	RejectDuplicate RejectReason = "duplicate"
	RejectNotFound  RejectReason = "not_found"
	RejectNoChange  RejectReason = "no_change"
	RejectInvalid   RejectReason = "invalid"
)

// Rejection is an in-band refusal of an edit. It is recorded in the trace and never aborts a run.
type Rejection struct {
	Reason  RejectReason
	Message string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("rejected (%s): %s", r.Reason, r.Message)
}

func reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Apply applies a to m and returns the resulting model, or a Rejection. m is never modified.
// Actions that do not edit the program return m itself.
func Apply(m *Model, a Action) (*Model, *Rejection) {
	switch v := a.(type) {
	case *Think, *ChangeFocus, *Submit:
		return m, nil

	case *CreateFunction:
		if v.Name == "" {
			return nil, reject(RejectInvalid, "function name is empty")
		}
		if m.FindFunction(v.Name) >= 0 {
			return nil, reject(RejectDuplicate, "function %q already exists", v.Name)
		}
		next := m.Clone()
		next.Functions = append(next.Functions, FuncDecl{
			Name:       v.Name,
			Params:     v.Params,
			ReturnType: v.ReturnType,
			Body:       v.Body,
		})
		return next, nil

	case *UpdateFunction:
		idx := m.FindFunction(v.Name)
		if idx < 0 {
			return nil, reject(RejectNotFound, "function %q does not exist", v.Name)
		}
		next := m.Clone()
		f := &next.Functions[idx]
		if v.Params != nil {
			f.Params = *v.Params
		}
		if v.ReturnType != nil {
			f.ReturnType = *v.ReturnType
		}
		if v.Body != nil {
			f.Body = *v.Body
		}
		if next.Serialize() == m.Serialize() {
			return nil, reject(RejectNoChange, "update of function %q makes no changes", v.Name)
		}
		return next, nil

	case *DeleteFunction:
		idx := m.FindFunction(v.Name)
		if idx < 0 {
			return nil, reject(RejectNotFound, "function %q does not exist", v.Name)
		}
		next := m.Clone()
		next.Functions = append(next.Functions[:idx], next.Functions[idx+1:]...)
		return next, nil

	case *CreateType:
		if v.Name == "" {
			return nil, reject(RejectInvalid, "type name is empty")
		}
		if m.FindType(v.Name) >= 0 {
			return nil, reject(RejectDuplicate, "type %q already exists", v.Name)
		}
		next := m.Clone()
		next.Types = append(next.Types, TypeDecl{Name: v.Name, Definition: v.Definition})
		return next, nil

	case *UpdateType:
		idx := m.FindType(v.Name)
		if idx < 0 {
			return nil, reject(RejectNotFound, "type %q does not exist", v.Name)
		}
		next := m.Clone()
		if v.Definition != nil {
			next.Types[idx].Definition = *v.Definition
		}
		if next.Serialize() == m.Serialize() {
			return nil, reject(RejectNoChange, "update of type %q makes no changes", v.Name)
		}
		return next, nil

	case *DeleteType:
		idx := m.FindType(v.Name)
		if idx < 0 {
			return nil, reject(RejectNotFound, "type %q does not exist", v.Name)
		}
		next := m.Clone()
		next.Types = append(next.Types[:idx], next.Types[idx+1:]...)
		return next, nil

	default:
		panic(fmt.Sprintf("program: unhandled action type %T", a))
	}
}
