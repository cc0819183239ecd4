package poolserver

import (
	"context"
	"testing"
	"time"

	"github.com/aa-bundler/opcore/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func runServer(t *testing.T, mempools ...Mempool) (*Server, context.Context) {
	t.Helper()
	srv := New(mempools, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)
	t.Cleanup(func() {
		srv.Shutdown()
		cancel()
	})
	return srv, ctx
}

func TestGetSupportedEntryPoints(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctrl := gomock.NewController(t)
	ep := common.HexToAddress("0xe1")
	mock := NewMockMempool(ctrl)
	mock.EXPECT().EntryPoint().Return(ep).AnyTimes()

	srv, ctx := runServer(t, mock)
	got, err := srv.GetSupportedEntryPoints(ctx)
	require.NoError(t, err)
	require.Equal(t, []common.Address{ep}, got)
}

func TestAddOpDispatchesToCorrectEntryPoint(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctrl := gomock.NewController(t)
	ep := common.HexToAddress("0xe1")
	wantHash := common.HexToHash("0xbeef")
	mock := NewMockMempool(ctrl)
	mock.EXPECT().EntryPoint().Return(ep).AnyTimes()
	mock.EXPECT().AddOperation(gomock.Any(), gomock.Nil()).Return(wantHash, nil)

	srv, ctx := runServer(t, mock)
	hash, err := srv.AddOp(ctx, ep, nil)
	require.NoError(t, err)
	require.Equal(t, wantHash, hash)
}

func TestAddOpUnknownEntryPoint(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctrl := gomock.NewController(t)
	mock := NewMockMempool(ctrl)
	mock.EXPECT().EntryPoint().Return(common.HexToAddress("0xe1")).AnyTimes()

	srv, ctx := runServer(t, mock)
	_, err := srv.AddOp(ctx, common.HexToAddress("0xdead"), nil)
	require.ErrorIs(t, err, ErrUnknownEntryPoint)
}

func TestChainUpdateAppliesBeforeHeadBroadcast(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctrl := gomock.NewController(t)
	ep := common.HexToAddress("0xe1")
	mock := NewMockMempool(ctrl)
	mock.EXPECT().EntryPoint().Return(ep).AnyTimes()

	// applied receives the number of heads already queued for the subscriber
	// at the moment the mempool applies the update.
	var heads <-chan HeadEvent
	applied := make(chan int, 1)
	update := chain.ChainUpdate{LatestBlockHash: common.HexToHash("0x1"), LatestBlockNumber: 5}
	mock.EXPECT().OnChainUpdate(gomock.Any(), update).Do(func(context.Context, chain.ChainUpdate) {
		applied <- len(heads)
	})

	srv, ctx := runServer(t, mock)
	heads, unsubscribe, err := srv.SubscribeNewHeads(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	srv.PublishChainUpdate(ctx, update)

	select {
	case queued := <-applied:
		require.Equal(t, 0, queued, "new head was broadcast before the mempool applied the update")
	case <-time.After(time.Second):
		t.Fatal("chain update was never applied")
	}

	select {
	case ev := <-heads:
		require.Equal(t, update.LatestBlockNumber, ev.Head.BlockNumber)
		require.Equal(t, update.LatestBlockHash, ev.Head.BlockHash)
	case <-time.After(time.Second):
		t.Fatal("no new head was broadcast after chain update")
	}
}

func TestMultipleEntryPointsAreIndependent(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctrl := gomock.NewController(t)
	ep1 := common.HexToAddress("0xe1")
	ep2 := common.HexToAddress("0xe2")
	m1 := NewMockMempool(ctrl)
	m2 := NewMockMempool(ctrl)
	m1.EXPECT().EntryPoint().Return(ep1).AnyTimes()
	m2.EXPECT().EntryPoint().Return(ep2).AnyTimes()
	m1.EXPECT().AllOperations().Return(nil)

	srv, ctx := runServer(t, m1, m2)
	_, err := srv.DebugDumpMempool(ctx, ep1)
	require.NoError(t, err)

	entryPoints, err := srv.GetSupportedEntryPoints(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []common.Address{ep1, ep2}, entryPoints)
}

func TestStatusReflectsMempoolHealth(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctrl := gomock.NewController(t)
	mock := NewMockMempool(ctrl)
	mock.EXPECT().EntryPoint().Return(common.HexToAddress("0xe1")).AnyTimes()

	srv, ctx := runServer(t, mock)
	require.NoError(t, srv.Status(ctx))
}
