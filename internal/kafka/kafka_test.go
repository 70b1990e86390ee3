package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func sampleEvent() *events.LedgerEvent {
	entry := core.Entry{ID: 1, Description: "Salary", Amount: decimal.NewFromInt(500), Category: core.Income}
	return events.NewEntryAdded("sess-1", entry, core.NewTotals(entry.Amount, decimal.Zero))
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "ledger"}

	e := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "sess-1", string(w.msgs[0].Key))
	assert.Equal(t, "type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, string(events.EntryAdded), string(w.msgs[0].Headers[0].Value))

	decoded, err := events.FromJSON(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, e.ID, decoded.ID)
}

func TestPublisher_PublishError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("leader not available")}, topic: "ledger"}

	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger")
}

func TestSubscriber_Consume(t *testing.T) {
	good, err := sampleEvent().ToJSON()
	require.NoError(t, err)

	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: good},
	}}
	s := &Subscriber{reader: r}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled int
	err = s.Consume(ctx, func(_ context.Context, e *events.LedgerEvent) error {
		handled++
		if handled == 2 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, handled)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}

func TestSubscriber_HandlerErrorStopsWithoutCommit(t *testing.T) {
	good, err := sampleEvent().ToJSON()
	require.NoError(t, err)

	r := &fakeReader{queue: []kafka.Message{{Offset: 5, Value: good}}}
	s := &Subscriber{reader: r}

	err = s.Consume(context.Background(), func(context.Context, *events.LedgerEvent) error {
		return errors.New("boom")
	})

	assert.ErrorContains(t, err, "boom")
	assert.Empty(t, r.committed)
}
