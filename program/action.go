package program

import (
	"fmt"
	"strings"
)

// Kind identifies an action variant. Values double as the tool names offered to the model.
type Kind string

const (
	KindThink          Kind = "think"
	KindChangeFocus    Kind = "change_focus"
	KindCreateFunction Kind = "create_function"
	KindUpdateFunction Kind = "update_function"
	KindDeleteFunction Kind = "delete_function"
	KindCreateType     Kind = "create_type"
	KindUpdateType     Kind = "update_type"
	KindDeleteType     Kind = "delete_type"
	KindSubmit         Kind = "submit"
)

// Kinds lists every action kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindThink,
		KindChangeFocus,
		KindCreateFunction,
		KindUpdateFunction,
		KindDeleteFunction,
		KindCreateType,
		KindUpdateType,
		KindDeleteType,
		KindSubmit,
	}
}

// Action is one step chosen by the generative oracle. The set of variants is closed.
type Action interface {
	isAction() restricted
	Kind() Kind
	String() string
}

type restricted struct{}

// IsEdit reports whether a changes the program model.
func IsEdit(a Action) bool {
	switch a.(type) {
	case *CreateFunction, *UpdateFunction, *DeleteFunction, *CreateType, *UpdateType, *DeleteType:
		return true
	default:
		return false
	}
}

type Think struct {
	Thought string
}

type ChangeFocus struct {
	PageID string
}

type CreateFunction struct {
	Name       string
	Params     string
	ReturnType string
	Body       string
}

// UpdateFunction replaces the provided fields of an existing function. Nil fields are left as is.
type UpdateFunction struct {
	Name       string
	Params     *string
	ReturnType *string
	Body       *string
}

type DeleteFunction struct {
	Name string
}

type CreateType struct {
	Name       string
	Definition string
}

type UpdateType struct {
	Name       string
	Definition *string
}

type DeleteType struct {
	Name string
}

type Submit struct {
	Details string
}

func (*Think) isAction() restricted          { return restricted{} }
func (*ChangeFocus) isAction() restricted    { return restricted{} }
func (*CreateFunction) isAction() restricted { return restricted{} }
func (*UpdateFunction) isAction() restricted { return restricted{} }
func (*DeleteFunction) isAction() restricted { return restricted{} }
func (*CreateType) isAction() restricted     { return restricted{} }
func (*UpdateType) isAction() restricted     { return restricted{} }
func (*DeleteType) isAction() restricted     { return restricted{} }
func (*Submit) isAction() restricted         { return restricted{} }

func (*Think) Kind() Kind          { return KindThink }
func (*ChangeFocus) Kind() Kind    { return KindChangeFocus }
func (*CreateFunction) Kind() Kind { return KindCreateFunction }
func (*UpdateFunction) Kind() Kind { return KindUpdateFunction }
func (*DeleteFunction) Kind() Kind { return KindDeleteFunction }
func (*CreateType) Kind() Kind     { return KindCreateType }
func (*UpdateType) Kind() Kind     { return KindUpdateType }
func (*DeleteType) Kind() Kind     { return KindDeleteType }
func (*Submit) Kind() Kind         { return KindSubmit }

func (a *Think) String() string { return "think: " + a.Thought }

func (a *ChangeFocus) String() string { return "change focus to page " + a.PageID }

func (a *CreateFunction) String() string {
	return "create function " + FuncDecl{Name: a.Name, Params: a.Params, ReturnType: a.ReturnType}.Signature()
}

func (a *UpdateFunction) String() string {
	var fields []string
	if a.Params != nil {
		fields = append(fields, "params")
	}
	if a.ReturnType != nil {
		fields = append(fields, "return type")
	}
	if a.Body != nil {
		fields = append(fields, "body")
	}
	return fmt.Sprintf("update function %s (%s)", a.Name, strings.Join(fields, ", "))
}

func (a *DeleteFunction) String() string { return "delete function " + a.Name }

func (a *CreateType) String() string { return "create type " + a.Name }

func (a *UpdateType) String() string { return "update type " + a.Name }

func (a *DeleteType) String() string { return "delete type " + a.Name }

func (a *Submit) String() string { return "submit: " + a.Details }
