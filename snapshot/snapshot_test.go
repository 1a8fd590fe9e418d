package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"hintbook/domain/orderbook"
	"hintbook/infra/custody"
)

func TestLoadMissing(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestWriteLoad(t *testing.T) {
	ctx := context.Background()
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")
	price := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(40))

	vault := custody.New("USDC", "ITEM")
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	require.NoError(t, vault.Deposit(orderbook.Settlement, alice, huge))
	require.NoError(t, vault.Deposit(orderbook.Inventory, bob, uint256.NewInt(100)))

	book := orderbook.NewBook(orderbook.Config{}, vault.Asset(orderbook.Settlement), vault.Asset(orderbook.Inventory))
	_, _, err := book.InsertAsk(ctx, bob, price, 10, orderbook.Anchor)
	require.NoError(t, err)
	_, _, err = book.InsertBid(ctx, alice, price, 4, orderbook.Anchor)
	require.NoError(t, err)
	_, _, err = book.InsertBid(ctx, alice, uint256.NewInt(5), 2, orderbook.Anchor)
	require.NoError(t, err)

	dir := t.TempDir()
	w := &Writer{Dir: dir}
	in := &State{Seq: 17, EventSeq: 23, Book: book.Export(), Vault: vault.Export()}
	require.NoError(t, w.Write(in))

	out, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(17), out.Seq)
	require.Equal(t, uint64(23), out.EventSeq)
	require.Equal(t, in.Vault, out.Vault)

	restoredVault := custody.New("USDC", "ITEM")
	restoredVault.Restore(out.Vault)
	restored := orderbook.NewBook(orderbook.Config{}, restoredVault.Asset(orderbook.Settlement), restoredVault.Asset(orderbook.Inventory))
	require.NoError(t, restored.Restore(out.Book))
	require.Equal(t, in.Book, restored.Export())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, fileName, entries[0].Name())
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("not gob"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
