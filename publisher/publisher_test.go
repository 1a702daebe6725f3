package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/xraph/membership"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/publisher"
	"github.com/xraph/membership/store/memory"
)

type published struct {
	subject string
	data    []byte
	opts    int
}

type fakeJetStream struct {
	mu   sync.Mutex
	msgs []published
	fail int
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("no responders")
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data, opts: len(opts)})
	return &jetstream.PubAck{Stream: "MEMBERSHIP", Sequence: uint64(len(f.msgs))}, nil
}

type fakeConn struct{ drained bool }

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublishEnvelope(t *testing.T) {
	js := &fakeJetStream{}
	p := publisher.New(js, publisher.WithSubjectPrefix("club"))

	n, err := notification.New(notification.KindMerchantAuthorized, time.Now(), notification.MerchantChanged{Address: "0xshop"})
	if err != nil {
		t.Fatal(err)
	}
	n.Seq = 3

	if err := p.OnNotification(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if len(js.msgs) != 1 {
		t.Fatalf("published %d messages", len(js.msgs))
	}
	msg := js.msgs[0]
	if msg.subject != "club.MerchantAuthorized" {
		t.Errorf("subject: %s", msg.subject)
	}
	if msg.opts != 1 {
		t.Errorf("expected the message id option, got %d options", msg.opts)
	}

	var got publisher.Message
	if err := json.Unmarshal(msg.data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != n.ID.String() || got.Seq != 3 || got.Kind != n.Kind {
		t.Errorf("unexpected envelope: %+v", got)
	}
	var payload notification.MerchantChanged
	if err := json.Unmarshal(got.Data, &payload); err != nil || payload.Address != "0xshop" {
		t.Errorf("payload: %s, %v", got.Data, err)
	}
}

func TestPublishFailureIsRetriedByRelay(t *testing.T) {
	js := &fakeJetStream{fail: 1}
	p := publisher.New(js)

	const admin = "0xadmin"
	l := membership.New(memory.New(),
		membership.WithAdmins(admin),
		membership.WithPlugin(p),
		membership.WithRelayRetry(2, time.Millisecond),
		membership.WithLogger(slog.New(slog.DiscardHandler)),
	)
	ctx := membership.WithCaller(context.Background(), admin)
	if err := l.AuthorizeMerchant(ctx, "0xshop"); err != nil {
		t.Fatal(err)
	}

	n, err := l.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 1 || len(js.msgs) != 1 {
		t.Errorf("delivered %d, published %d", n, len(js.msgs))
	}
	if js.msgs[0].subject != publisher.DefaultSubjectPrefix+".MerchantAuthorized" {
		t.Errorf("subject: %s", js.msgs[0].subject)
	}
}

func TestShutdownDrainsConnection(t *testing.T) {
	conn := &fakeConn{}
	p := publisher.New(&fakeJetStream{}, publisher.WithConn(conn))
	if err := p.OnShutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !conn.drained {
		t.Error("connection not drained")
	}
	if err := publisher.New(&fakeJetStream{}).OnShutdown(context.Background()); err != nil {
		t.Errorf("shutdown without a connection: %v", err)
	}
}
