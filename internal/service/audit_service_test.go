package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-vesting/internal/service/mq"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/monitor"
)

func eventMessage(t *testing.T, ev vesting.Event) *mq.Message {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return &mq.Message{ID: "0/1", Topic: "vesting.events", Key: "pool-1", Payload: raw}
}

func TestAuditSkipsDuplicates(t *testing.T) {
	metrics := monitor.NewVestingMetrics(prometheus.NewRegistry())
	audit := NewAuditService(nil, "vesting.events", metrics)

	claimed := func(seq uint64) vesting.Event {
		return vesting.Event{
			Seq:  seq,
			Type: vesting.EventClaimed,
			At:   1_700_000_000 + seq,
			Claimed: &vesting.Claimed{
				PoolID:      1,
				Beneficiary: common.HexToAddress("0xa11ce"),
				Amount:      "10",
			},
		}
	}

	require.NoError(t, audit.Handle(eventMessage(t, claimed(1))))
	require.NoError(t, audit.Handle(eventMessage(t, claimed(2))))
	// 重复投递
	require.NoError(t, audit.Handle(eventMessage(t, claimed(2))))
	require.NoError(t, audit.Handle(eventMessage(t, claimed(1))))
	assert.Equal(t, uint64(2), audit.LastSeq())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EventsConsumedTotal.WithLabelValues(string(vesting.EventClaimed))))

	// 缺口之上的事件照常处理, 水位线停在缺口前
	require.NoError(t, audit.Handle(eventMessage(t, claimed(5))))
	assert.Equal(t, uint64(5), audit.LastSeq())
	assert.Equal(t, uint64(2), audit.Watermark())
	require.NoError(t, audit.Handle(eventMessage(t, claimed(5))))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.EventsConsumedTotal.WithLabelValues(string(vesting.EventClaimed))))
}

func TestAuditAcceptsEventsOutOfOrderAcrossPools(t *testing.T) {
	metrics := monitor.NewVestingMetrics(prometheus.NewRegistry())
	audit := NewAuditService(nil, "vesting.events", metrics)

	claim := func(seq, pool uint64) *mq.Message {
		msg := eventMessage(t, vesting.Event{
			Seq:     seq,
			Type:    vesting.EventClaimed,
			Claimed: &vesting.Claimed{PoolID: pool, Amount: "1"},
		})
		msg.Key = fmt.Sprintf("pool-%d", pool)
		return msg
	}

	// pool-2 所在分区先到
	require.NoError(t, audit.Handle(claim(2, 2)))
	require.NoError(t, audit.Handle(claim(3, 2)))
	assert.Equal(t, uint64(0), audit.Watermark())
	require.NoError(t, audit.Handle(claim(1, 1)))
	assert.Equal(t, uint64(3), audit.Watermark())
	assert.Equal(t, uint64(3), audit.LastSeq())

	// 两个分区各自重投
	require.NoError(t, audit.Handle(claim(1, 1)))
	require.NoError(t, audit.Handle(claim(2, 2)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.EventsConsumedTotal.WithLabelValues(string(vesting.EventClaimed))))
}

func TestAuditAcksMalformedPayload(t *testing.T) {
	audit := NewAuditService(nil, "vesting.events", nil)
	err := audit.Handle(&mq.Message{ID: "bad", Payload: []byte("{not json")})
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), audit.LastSeq())
}
