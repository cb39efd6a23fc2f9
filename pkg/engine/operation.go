package engine

import (
	"fmt"

	list "github.com/bahlo/generic-list-go"
)

// Operation identifies a step of the interactive workflow. The set is closed:
// every Operation except OpTerminate is bound to exactly one handler.
type Operation int

// The zero Operation is OpTerminate so that an empty or corrupted plan stops.
const (
	OpTerminate Operation = iota
	OpAuthenticate
	OpMainMenu
	OpListAndChoose
	OpChooseAction
	OpPostViewPrompt
	OpCollectFields
	OpView
	OpSave
	OpDelete
)

var operationNames = map[Operation]string{
	OpTerminate:      "terminate",
	OpAuthenticate:   "authenticate",
	OpMainMenu:       "show-main-menu",
	OpListAndChoose:  "list-and-choose",
	OpChooseAction:   "choose-action",
	OpPostViewPrompt: "post-view-prompt",
	OpCollectFields:  "collect-fields",
	OpView:           "view",
	OpSave:           "save",
	OpDelete:         "delete",
}

// String returns the operation name.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// ParseOperation converts a name produced by String back into an Operation.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return OpTerminate, fmt.Errorf("unknown operation %q", name)
}

// DefaultPlan returns the operations every session starts with.
func DefaultPlan() []Operation {
	return []Operation{OpAuthenticate, OpMainMenu, OpTerminate}
}

// Queue is the plan of remaining operations. Operations are taken from the front,
// and follow-ups are inserted at the front so they run before anything queued earlier.
type Queue struct {
	ops *list.List[Operation]
}

// NewQueue returns a queue holding ops in order.
func NewQueue(ops ...Operation) *Queue {
	q := &Queue{ops: list.New[Operation]()}
	for _, op := range ops {
		q.ops.PushBack(op)
	}
	return q
}

// PushFront inserts ops at the front of the queue. ops[0] becomes the next
// operation to run, followed by the rest of ops, followed by the previous contents.
func (q *Queue) PushFront(ops ...Operation) {
	for i := len(ops) - 1; i >= 0; i-- {
		q.ops.PushFront(ops[i])
	}
}

// PopFront removes and returns the next operation. An empty queue yields OpTerminate.
func (q *Queue) PopFront() Operation {
	front := q.ops.Front()
	if front == nil {
		return OpTerminate
	}
	return q.ops.Remove(front)
}

// Peek returns the next operation without removing it.
func (q *Queue) Peek() Operation {
	if front := q.ops.Front(); front != nil {
		return front.Value
	}
	return OpTerminate
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	return q.ops.Len()
}

// Snapshot returns the queued operations in execution order.
func (q *Queue) Snapshot() []Operation {
	out := make([]Operation, 0, q.ops.Len())
	for e := q.ops.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	return out
}
