package dom

import "fmt"

// Kind is the command type discriminator. The numeric values are part of the
// wire format.
type Kind uint8

const (
	KindCreateNode     Kind = 0x01
	KindCreateText     Kind = 0x02
	KindUpdateText     Kind = 0x03
	KindCreateComment  Kind = 0x04
	KindSetAttr        Kind = 0x05
	KindRemoveAttr     Kind = 0x06
	KindInsertBefore   Kind = 0x07
	KindRemove         Kind = 0x08
	KindInsertCss      Kind = 0x09
	KindCallbackAdd    Kind = 0x0A
	KindCallbackRemove Kind = 0x0B
)

// Kinds lists every command kind in wire order.
var Kinds = []Kind{
	KindCreateNode, KindCreateText, KindUpdateText, KindCreateComment,
	KindSetAttr, KindRemoveAttr, KindInsertBefore, KindRemove,
	KindInsertCss, KindCallbackAdd, KindCallbackRemove,
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCreateNode:
		return "CreateNode"
	case KindCreateText:
		return "CreateText"
	case KindUpdateText:
		return "UpdateText"
	case KindCreateComment:
		return "CreateComment"
	case KindSetAttr:
		return "SetAttr"
	case KindRemoveAttr:
		return "RemoveAttr"
	case KindInsertBefore:
		return "InsertBefore"
	case KindRemove:
		return "Remove"
	case KindInsertCss:
		return "InsertCss"
	case KindCallbackAdd:
		return "CallbackAdd"
	case KindCallbackRemove:
		return "CallbackRemove"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Command is one document mutation. Which fields are meaningful depends on
// Kind:
//
//	CreateNode      ID, Name (tag)
//	CreateText      ID, Value (text)
//	UpdateText      ID, Value
//	CreateComment   ID, Value
//	SetAttr         ID, Name, Value
//	RemoveAttr      ID, Name
//	InsertBefore    ID (parent), Child, Ref (0 appends)
//	Remove          ID
//	InsertCss       Name (selector), Value (rule body)
//	CallbackAdd     ID, Name (event), Callback
//	CallbackRemove  ID, Name (event), Callback
type Command struct {
	Kind     Kind
	ID       DomID
	Child    DomID
	Ref      DomID
	Name     string
	Value    string
	Callback CallbackID
}

// CreateNode creates an element.
func CreateNode(id DomID, tag string) Command {
	return Command{Kind: KindCreateNode, ID: id, Name: tag}
}

// CreateText creates a text node.
func CreateText(id DomID, text string) Command {
	return Command{Kind: KindCreateText, ID: id, Value: text}
}

// UpdateText replaces the content of a text node.
func UpdateText(id DomID, text string) Command {
	return Command{Kind: KindUpdateText, ID: id, Value: text}
}

// CreateComment creates a comment node.
func CreateComment(id DomID, text string) Command {
	return Command{Kind: KindCreateComment, ID: id, Value: text}
}

// SetAttr sets an attribute.
func SetAttr(id DomID, name, value string) Command {
	return Command{Kind: KindSetAttr, ID: id, Name: name, Value: value}
}

// RemoveAttr removes an attribute.
func RemoveAttr(id DomID, name string) Command {
	return Command{Kind: KindRemoveAttr, ID: id, Name: name}
}

// InsertBefore attaches child to parent before ref, or at the end when ref is
// zero.
func InsertBefore(parent, child, ref DomID) Command {
	return Command{Kind: KindInsertBefore, ID: parent, Child: child, Ref: ref}
}

// Remove detaches and destroys a node and its subtree.
func Remove(id DomID) Command {
	return Command{Kind: KindRemove, ID: id}
}

// InsertCss registers a style rule.
func InsertCss(selector, body string) Command {
	return Command{Kind: KindInsertCss, Name: selector, Value: body}
}

// CallbackAdd wires an event handler.
func CallbackAdd(id DomID, event EventKind, cb CallbackID) Command {
	return Command{Kind: KindCallbackAdd, ID: id, Name: string(event), Callback: cb}
}

// CallbackRemove unwires an event handler.
func CallbackRemove(id DomID, event EventKind, cb CallbackID) Command {
	return Command{Kind: KindCallbackRemove, ID: id, Name: string(event), Callback: cb}
}

// String renders the command for logs and debug tables.
func (c Command) String() string {
	switch c.Kind {
	case KindCreateNode:
		return fmt.Sprintf("CreateNode(%d, %s)", c.ID, c.Name)
	case KindCreateText, KindUpdateText, KindCreateComment:
		return fmt.Sprintf("%s(%d, %q)", c.Kind, c.ID, c.Value)
	case KindSetAttr:
		return fmt.Sprintf("SetAttr(%d, %s=%q)", c.ID, c.Name, c.Value)
	case KindRemoveAttr:
		return fmt.Sprintf("RemoveAttr(%d, %s)", c.ID, c.Name)
	case KindInsertBefore:
		if c.Ref == 0 {
			return fmt.Sprintf("InsertBefore(%d, %d)", c.ID, c.Child)
		}
		return fmt.Sprintf("InsertBefore(%d, %d, ref=%d)", c.ID, c.Child, c.Ref)
	case KindRemove:
		return fmt.Sprintf("Remove(%d)", c.ID)
	case KindInsertCss:
		return fmt.Sprintf("InsertCss(%s { %s })", c.Name, c.Value)
	case KindCallbackAdd, KindCallbackRemove:
		return fmt.Sprintf("%s(%d, %s, cb=%d)", c.Kind, c.ID, c.Name, c.Callback)
	default:
		return c.Kind.String()
	}
}
