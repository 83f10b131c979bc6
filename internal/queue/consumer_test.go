package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/model"
)

type recordingWriter struct {
	got []model.AuditEntry
	err error
}

func (w *recordingWriter) InsertAuditEntries(_ context.Context, entries []model.AuditEntry) error {
	if w.err != nil {
		return w.err
	}
	w.got = append(w.got, entries...)
	return nil
}

func TestAuditConsumerHandle(t *testing.T) {
	msg := PlanAuditMessage{
		EventID: "ev1",
		Version: 6,
		Entries: []model.AuditEntry{
			{ID: "a1", EventID: "ev1", UserID: "owner", ActionType: "remove_table", CreatedAt: time.Unix(0, 0).UTC()},
		},
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()

	tests := []struct {
		name    string
		body    []byte
		werr    error
		wantErr bool
		bad     bool
		stored  int
	}{
		{"stores entries", body, nil, false, false, 1},
		{"empty message", []byte(`{"event_id":"ev1","entries":[]}`), nil, false, false, 0},
		{"garbage", []byte(`not json`), nil, true, true, 0},
		{"writer failure", body, errors.New("db down"), true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{err: tt.werr}
			c := &AuditConsumer{Writer: w, Log: log}
			err := c.Handle(context.Background(), tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.bad, errors.Is(err, ErrMalformedMessage))
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, w.got, tt.stored)
		})
	}
}

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (d *fakeDelivery) Ack(bool) error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.nacked, d.requeued = true, requeue
	return nil
}

func TestAuditConsumerSettle(t *testing.T) {
	msg := PlanAuditMessage{EventID: "ev1", Version: 2, Entries: []model.AuditEntry{{ID: "a1", EventID: "ev1"}}}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()

	tests := []struct {
		name     string
		body     []byte
		werr     error
		acked    bool
		nacked   bool
		requeued bool
	}{
		{"stored is acked", body, nil, true, false, false},
		{"undecodable is dropped", []byte(`{`), nil, false, true, false},
		{"failed write is requeued", body, errors.New("db down"), false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AuditConsumer{Writer: &recordingWriter{err: tt.werr}, Log: log, RequeueDelay: time.Millisecond}
			d := &fakeDelivery{}
			c.settle(context.Background(), d, c.Handle(context.Background(), tt.body))
			assert.Equal(t, tt.acked, d.acked)
			assert.Equal(t, tt.nacked, d.nacked)
			assert.Equal(t, tt.requeued, d.requeued)
		})
	}
}

func TestAuditConsumerRedeliveryStoresEntries(t *testing.T) {
	msg := PlanAuditMessage{EventID: "ev1", Version: 2, Entries: []model.AuditEntry{{ID: "a1", EventID: "ev1"}}}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	w := &recordingWriter{err: errors.New("db down")}
	c := &AuditConsumer{Writer: w, Log: log, RequeueDelay: time.Millisecond}

	first := &fakeDelivery{}
	c.settle(context.Background(), first, c.Handle(context.Background(), body))
	require.True(t, first.requeued)

	w.err = nil
	second := &fakeDelivery{}
	c.settle(context.Background(), second, c.Handle(context.Background(), body))
	assert.True(t, second.acked)
	require.Len(t, w.got, 1)
	assert.Equal(t, "a1", w.got[0].ID)
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
