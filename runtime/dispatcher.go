package runtime

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// ContentFilter rewrites message content before it is persisted.
type ContentFilter interface {
	Censor(content string) string
}

type DispatcherConfig struct {
	PersistTimeout   time.Duration
	DeliveryTimeout  time.Duration
	MaxContentLength int
}

// Dispatcher validates, persists and fans out new messages.
// A message is fully persisted before any emission starts and fan-out to one
// room is serialized, so connections see a room's messages in persisted order.
type Dispatcher struct {
	log      *slog.Logger
	store    contract.IDurableStore
	sessions *SessionRegistry
	rooms    *RoomDirectory
	locks    *KeyedLocker
	validate *validator.Validate
	filter   ContentFilter
	config   DispatcherConfig
}

func NewDispatcher(log *slog.Logger, store contract.IDurableStore, sessions *SessionRegistry,
	rooms *RoomDirectory, config DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		log:      log,
		store:    store,
		sessions: sessions,
		rooms:    rooms,
		locks:    NewKeyedLocker(),
		validate: validator.New(),
		config:   config,
	}
}

// WithFilter installs a moderation filter applied to every accepted message.
func (d *Dispatcher) WithFilter(filter ContentFilter) *Dispatcher {
	d.filter = filter
	return d
}

// SendDirect persists a direct message and emits it to every live connection
// of the sender and of the receiver.
func (d *Dispatcher) SendDirect(ctx context.Context, cmd domain.SendDirectCommand) (domain.Message, error) {
	if err := d.validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidIdentifier, err)
	}
	content, err := d.checkContent(cmd.Content)
	if err != nil {
		return domain.Message{}, err
	}

	exists, err := withTimeout(ctx, d.config.PersistTimeout, func(ctx context.Context) (bool, error) {
		return d.store.UserExists(ctx, cmd.ReceiverID)
	})
	if err != nil {
		return domain.Message{}, err
	}
	if !exists {
		return domain.Message{}, errors.ErrUnknownReceiver
	}

	return d.persistAndFanout(ctx, cmd.SenderID, domain.DirectTo(cmd.ReceiverID), content)
}

// SendGroup persists a group message and emits it to the group room.
// Membership is checked against the store at send time.
func (d *Dispatcher) SendGroup(ctx context.Context, cmd domain.SendGroupCommand) (domain.Message, error) {
	if err := d.validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidIdentifier, err)
	}
	content, err := d.checkContent(cmd.Content)
	if err != nil {
		return domain.Message{}, err
	}

	exists, err := withTimeout(ctx, d.config.PersistTimeout, func(ctx context.Context) (bool, error) {
		return d.store.GroupExists(ctx, cmd.GroupID)
	})
	if err != nil {
		return domain.Message{}, err
	}
	if !exists {
		return domain.Message{}, errors.ErrUnknownGroup
	}

	member, err := withTimeout(ctx, d.config.PersistTimeout, func(ctx context.Context) (bool, error) {
		return d.store.IsGroupMember(ctx, cmd.SenderID, cmd.GroupID)
	})
	if err != nil {
		return domain.Message{}, err
	}
	if !member {
		return domain.Message{}, errors.ErrNotGroupMember
	}

	return d.persistAndFanout(ctx, cmd.SenderID, domain.GroupTo(cmd.GroupID), content)
}

func (d *Dispatcher) checkContent(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.ErrEmptyContent
	}
	if d.config.MaxContentLength > 0 && utf8.RuneCountInString(content) > d.config.MaxContentLength {
		return "", errors.ErrContentTooLong
	}
	if d.filter != nil {
		content = d.filter.Censor(content)
	}
	return content, nil
}

func (d *Dispatcher) persistAndFanout(ctx context.Context, senderID domain.UserID,
	target domain.Target, content string) (domain.Message, error) {
	rooms := domain.Message{SenderID: senderID, Kind: target.Kind,
		ReceiverID: target.ReceiverID, GroupID: target.GroupID}.Rooms()

	unlock := d.locks.Lock(lo.Map(rooms, func(r domain.RoomID, _ int) string { return string(r) })...)
	defer unlock()

	msg, err := withTimeout(ctx, d.config.PersistTimeout, func(ctx context.Context) (domain.Message, error) {
		return d.store.CreateMessage(ctx, senderID, target, content)
	})
	if err != nil {
		d.log.Warn("Message not persisted, fan-out skipped",
			"sender_id", senderID, "kind", target.Kind, "error", err)
		return domain.Message{}, err
	}

	d.fanout(ctx, msg, rooms)
	return msg, nil
}

// fanout emits msg once to each resolved connection. A failing connection
// never prevents delivery to the others.
func (d *Dispatcher) fanout(ctx context.Context, msg domain.Message, rooms []domain.RoomID) {
	targets := d.rooms.ResolveDeliveryTargets(rooms...)
	evt := event.NewMessage{Message: msg}

	delivered := 0
	for _, connID := range targets {
		if err := d.emit(ctx, connID, evt); err != nil {
			d.log.Warn("Delivery failed",
				"message_id", msg.ID,
				"connection_id", connID,
				"error", err)
			continue
		}
		delivered++
	}
	d.log.Debug("Message fanned out",
		"message_id", msg.ID,
		"rooms", rooms,
		"targets", len(targets),
		"delivered", delivered)
}

func (d *Dispatcher) emit(ctx context.Context, connID domain.ConnectionID, evt event.DomainEvent) (err error) {
	sink, ok := d.sessions.Sink(connID)
	if !ok {
		return errors.ErrUnknownSink
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sink panicked: %v", errors.ErrDelivery, r)
		}
	}()

	// The sender going away must not cut the fan-out short
	emitCtx := context.WithoutCancel(ctx)
	if d.config.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		emitCtx, cancel = context.WithTimeout(emitCtx, d.config.DeliveryTimeout)
		defer cancel()
	}
	return sink.Consume(emitCtx, evt)
}
