package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/testutil"
)

func TestSinkPersistsOnClose(t *testing.T) {
	db := testutil.NewDB(t)
	sink := NewSink(db, 16)

	rid := uint(3)
	for i := 0; i < 5; i++ {
		sink.Record(context.Background(), Entry{
			ActorID:      1,
			RestaurantID: &rid,
			Action:       "coupon.redeem",
			Resource:     "coupon",
			ResourceID:   "9",
			Payload:      map[string]int{"attempt": i},
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sink.Close(ctx))

	var logs []model.AuditLog
	require.NoError(t, db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 5)
	assert.Equal(t, "coupon.redeem", logs[0].Action)
	assert.Equal(t, rid, *logs[0].RestaurantID)
	assert.JSONEq(t, `{"attempt":0}`, string(logs[0].Payload))
}

func TestSinkRecordAfterCloseIsDropped(t *testing.T) {
	db := testutil.NewDB(t)
	sink := NewSink(db, 4)
	require.NoError(t, sink.Close(context.Background()))

	assert.NotPanics(t, func() {
		sink.Record(context.Background(), Entry{ActorID: 1, Action: "x", Resource: "y"})
	})
	require.NoError(t, sink.Close(context.Background()))

	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSinkSurvivesInsertFailure(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Migrator().DropTable(&model.AuditLog{}))
	sink := NewSink(db, 4)

	assert.NotPanics(t, func() {
		sink.Record(context.Background(), Entry{ActorID: 1, Action: "x", Resource: "y"})
	})
	require.NoError(t, sink.Close(context.Background()))
}
