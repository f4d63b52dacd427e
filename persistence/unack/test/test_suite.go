package test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/DrmagicE/coremqtt/persistence/unack"
	"github.com/DrmagicE/coremqtt/pkg/packets"
)

var (
	cid          = "cid"
	TestClientID = cid
)

func TestSuite(t *testing.T, store unack.Store) {
	a := assert.New(t)
	a.Nil(store.Init(false))
	for i := packets.PacketID(1); i < 10; i++ {
		rs, err := store.Reserve(i, packets.Qos1)
		a.Nil(err)
		a.False(rs)
		rs, err = store.Reserve(i, packets.Qos2)
		a.Nil(err)
		a.True(rs)
		r, ok, err := store.Get(i)
		a.Nil(err)
		a.True(ok)
		a.Equal(unack.Record{QoS: packets.Qos1, State: unack.StateReserved}, r)

		a.Nil(store.Update(i, unack.StatePublishSent))
		r, _, _ = store.Get(i)
		a.Equal(unack.StatePublishSent, r.State)

		err = store.Remove(i)
		a.Nil(err)
		_, ok, err = store.Get(i)
		a.Nil(err)
		a.False(ok)
		a.True(errors.Is(store.Update(i, unack.StatePubrelSent), unack.ErrNotFound))
		rs, err = store.Reserve(i, packets.Qos2)
		a.Nil(err)
		a.False(rs)
	}
	a.Equal(9, store.Len())
	a.Nil(store.Init(false))
	for i := packets.PacketID(1); i < 10; i++ {
		rs, err := store.Reserve(i, packets.Qos2)
		a.Nil(err)
		a.True(rs)
		err = store.Remove(i)
		a.Nil(err)
		rs, err = store.Reserve(i, packets.Qos2)
		a.Nil(err)
		a.False(rs)
	}
	a.Nil(store.Init(true))
	a.Equal(0, store.Len())
	for i := packets.PacketID(1); i < 10; i++ {
		rs, err := store.Reserve(i, packets.Qos1)
		a.Nil(err)
		a.False(rs)
	}
}
