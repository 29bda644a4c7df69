//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// It is used for logging during supervision so workers don't have to name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the emitting side of one live connection.
// Consume must not block past ctx and must fail with an ErrDelivery
// when the underlying transport is gone.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IDurableStore is the narrow view of persistent storage the engine depends on.
// Every persisted message must stay retrievable by its recipients.
type IDurableStore interface {
	CreateMessage(ctx context.Context, senderID domain.UserID, target domain.Target, content string) (domain.Message, error)
	ListDirectMessages(ctx context.Context, userA, userB domain.UserID) ([]domain.Message, error)
	ListGroupMessages(ctx context.Context, groupID domain.GroupID) ([]domain.Message, error)
	GroupMembersOf(ctx context.Context, userID domain.UserID) ([]domain.GroupID, error)
	IsGroupMember(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (bool, error)
	UserExists(ctx context.Context, userID domain.UserID) (bool, error)
	GroupExists(ctx context.Context, groupID domain.GroupID) (bool, error)
}

// IMembershipNotifier is told about durable membership changes once they are committed.
type IMembershipNotifier interface {
	MemberAdded(userID domain.UserID, groupID domain.GroupID)
	MemberRemoved(userID domain.UserID, groupID domain.GroupID)
}

// IEngine is everything the connection gateway may call.
type IEngine interface {
	Connect(ctx context.Context, userID domain.UserID, sink EventSink) (domain.Connection, error)
	Disconnect(connID domain.ConnectionID)
	Touch(connID domain.ConnectionID)
	SendDirect(ctx context.Context, cmd domain.SendDirectCommand) (domain.Message, error)
	SendGroup(ctx context.Context, cmd domain.SendGroupCommand) (domain.Message, error)
	JoinGroupRoom(ctx context.Context, userID domain.UserID, groupID domain.GroupID) error
	LeaveGroupRoom(userID domain.UserID, groupID domain.GroupID)
}

type IAuthenticator interface {
	Authenticate(ctx context.Context, token string) (domain.UserID, error)
}
