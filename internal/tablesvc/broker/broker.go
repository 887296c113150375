package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/pokerclub-services/internal/comm"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
)

// ResultTopic carries results for messages that arrived without a reply
// subject.
const ResultTopic = "table.service"

type Conn interface {
	Publish(subject string, data []byte) error
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type TableSaver interface {
	Save(ctx context.Context, t *engine.Table) (int64, error)
}

type HandRecorder interface {
	StartHand(ctx context.Context, t *engine.Table) (int64, error)
	RecordAction(ctx context.Context, handID int64, evt engine.HandEvent) (int64, error)
	FinishHand(ctx context.Context, handID int64, board []string, pots, winners json.RawMessage) error
}

type ChipLedger interface {
	Upsert(ctx context.Context, id, name string, chips int64) error
	SetChips(ctx context.Context, id string, chips int64) error
	AdjustChips(ctx context.Context, id string, delta int64) (int64, error)
}

type Broker struct {
	Conn    Conn
	Tables  TableSaver
	Hands   HandRecorder
	Users   ChipLedger
	Timeout time.Duration
}

func NewBroker(conn Conn, tables TableSaver, hands HandRecorder, users ChipLedger, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Broker{
		Conn:    conn,
		Tables:  tables,
		Hands:   hands,
		Users:   users,
		Timeout: timeout,
	}
}

// handles message coming from the rules engine
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := comm.Message{}
	if err := json.Unmarshal(msgNat.Data, &msg); err != nil {
		log.Errorf("Error nats message %s", err)
		b.respond(msgNat.Reply, comm.Failed("", "", fmt.Errorf("%w: %v", comm.ErrInvalidMessage, err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.Timeout)
	defer cancel()

	res := b.dispatch(ctx, msg)
	if !res.OK {
		log.WithFields(log.Fields{"type": msg.Type, "table_id": msg.TableID, "code": res.Code}).
			Warnf("engine message rejected: %s", res.Error)
	}
	b.respond(msgNat.Reply, res)
}

func (b *Broker) dispatch(ctx context.Context, msg comm.Message) comm.Result {
	switch msg.Type {
	case comm.TypeSaveTable:
		t, err := engine.DecodeTable(msg.Data)
		if err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		version, err := b.Tables.Save(ctx, t)
		if err != nil {
			return comm.Failed(msg.Type, t.ID, err)
		}
		return comm.Result{Type: msg.Type, TableID: t.ID, OK: true, Version: version}

	case comm.TypeStartHand:
		var request comm.StartHand
		if err := decode(msg.Data, &request); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		if request.TableID == "" {
			request.TableID = msg.TableID
		}
		handID, err := b.Hands.StartHand(ctx, &engine.Table{
			ID:      request.TableID,
			HandNo:  request.HandNo,
			Variant: request.Variant,
		})
		if err != nil {
			return comm.Failed(msg.Type, request.TableID, err)
		}
		return comm.Result{Type: msg.Type, TableID: request.TableID, OK: true, HandID: handID}

	case comm.TypeRecordAction:
		var request comm.RecordAction
		if err := decode(msg.Data, &request); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		evt, err := engine.DecodeHandEvent(request.Event)
		if err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		actionID, err := b.Hands.RecordAction(ctx, request.HandID, evt)
		if err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		return comm.Result{Type: msg.Type, TableID: msg.TableID, OK: true, HandID: request.HandID, ActionID: actionID}

	case comm.TypeFinishHand:
		var request comm.FinishHand
		if err := decode(msg.Data, &request); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		if err := b.Hands.FinishHand(ctx, request.HandID, request.Board, request.Pots, request.Winners); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		return comm.Result{Type: msg.Type, TableID: msg.TableID, OK: true, HandID: request.HandID}

	case comm.TypeAdjustChips:
		var request comm.AdjustChips
		if err := decode(msg.Data, &request); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		chips, err := b.Users.AdjustChips(ctx, request.UserID, request.Delta)
		if err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		return comm.Result{Type: msg.Type, TableID: msg.TableID, OK: true, Chips: &chips}

	case comm.TypeUpsertUser:
		var request comm.UpsertUser
		if err := decode(msg.Data, &request); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		if request.UserID == "" || request.Chips < 0 {
			return comm.Failed(msg.Type, msg.TableID, fmt.Errorf("%w: user id and non-negative chips required", comm.ErrInvalidMessage))
		}
		if err := b.Users.Upsert(ctx, request.UserID, request.Name, request.Chips); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		return comm.Result{Type: msg.Type, TableID: msg.TableID, OK: true, Chips: &request.Chips}

	case comm.TypeSetChips:
		var request comm.SetChips
		if err := decode(msg.Data, &request); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		if request.Chips < 0 {
			return comm.Failed(msg.Type, msg.TableID, fmt.Errorf("%w: negative chips", comm.ErrInvalidMessage))
		}
		if err := b.Users.SetChips(ctx, request.UserID, request.Chips); err != nil {
			return comm.Failed(msg.Type, msg.TableID, err)
		}
		return comm.Result{Type: msg.Type, TableID: msg.TableID, OK: true, Chips: &request.Chips}

	default:
		return comm.Failed(msg.Type, msg.TableID, fmt.Errorf("%w: unknown type %q", comm.ErrInvalidMessage, msg.Type))
	}
}

func decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", comm.ErrInvalidMessage, err)
	}
	return nil
}

// respond answers on the request's reply subject, or on ResultTopic for
// fire-and-forget publishes.
func (b *Broker) respond(reply string, res comm.Result) {
	payload, err := json.Marshal(res)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	topic := reply
	if topic == "" {
		topic = ResultTopic
	}
	b.Publish(topic, payload)
}

// consume engine messages (Queue)
func (b *Broker) QueueSubscribeEngine(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
