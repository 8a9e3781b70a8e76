package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"swapescrow/crypto"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
	"swapescrow/storage"
)

// Key prefixes for the persisted state namespaces.
var (
	mintPrefix    = []byte("token/mint/")
	holdingPrefix = []byte("token/holding/")
	nativePrefix  = []byte("native/balance/")
	recordPrefix  = []byte("escrow/record/")
)

// kv is the raw byte-level view shared by the manager and its transactions.
type kv interface {
	get(key []byte) ([]byte, bool, error)
	put(key, value []byte) error
	del(key []byte) error
}

// Manager persists mints, holding accounts, native balances and offer
// records as RLP-encoded values over a storage.Database. It satisfies both
// the token ledger's and the escrow engine's state interfaces.
type Manager struct {
	view
	db storage.Database
}

// NewManager wraps a database in a state manager.
func NewManager(db storage.Database) *Manager {
	m := &Manager{db: db}
	m.view.kv = dbKV{db: db}
	return m
}

// Begin opens a buffered transaction over the manager. Writes and deletes
// stay in the buffer until Commit; dropping the transaction discards them,
// which is how a failed transition leaves no persisted effect.
func (m *Manager) Begin() *Txn {
	t := &Txn{
		parent:  m,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
	t.view.kv = t
	return t
}

type dbKV struct {
	db storage.Database
}

func (d dbKV) get(key []byte) ([]byte, bool, error) {
	value, err := d.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (d dbKV) put(key, value []byte) error { return d.db.Put(key, value) }
func (d dbKV) del(key []byte) error        { return d.db.Delete(key) }

// Txn is a buffered view over the manager.
type Txn struct {
	view
	parent  *Manager
	writes  map[string][]byte
	deletes map[string]struct{}
}

func (t *Txn) get(key []byte) ([]byte, bool, error) {
	if value, ok := t.writes[string(key)]; ok {
		return value, true, nil
	}
	if _, ok := t.deletes[string(key)]; ok {
		return nil, false, nil
	}
	return t.parent.view.kv.get(key)
}

func (t *Txn) put(key, value []byte) error {
	delete(t.deletes, string(key))
	t.writes[string(key)] = value
	return nil
}

func (t *Txn) del(key []byte) error {
	delete(t.writes, string(key))
	t.deletes[string(key)] = struct{}{}
	return nil
}

// Commit flushes the buffered writes and deletes to the database.
func (t *Txn) Commit() error {
	for key := range t.deletes {
		if err := t.parent.db.Delete([]byte(key)); err != nil {
			return fmt.Errorf("commit delete: %w", err)
		}
	}
	for key, value := range t.writes {
		if err := t.parent.db.Put([]byte(key), value); err != nil {
			return fmt.Errorf("commit write: %w", err)
		}
	}
	return nil
}

// view implements the typed accessors over a raw kv.
type view struct {
	kv kv
}

func (v view) getRLP(key []byte, out interface{}) (bool, error) {
	value, ok, err := v.kv.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(value, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (v view) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return v.kv.put(key, encoded)
}

func prefixed(prefix []byte, addr crypto.Address) []byte {
	return append(append([]byte(nil), prefix...), addr[:]...)
}

func (v view) MintGet(addr crypto.Address) (*token.Mint, bool, error) {
	mint := new(token.Mint)
	ok, err := v.getRLP(prefixed(mintPrefix, addr), mint)
	if !ok || err != nil {
		return nil, false, err
	}
	return mint, true, nil
}

func (v view) MintPut(mint *token.Mint) error {
	if mint == nil {
		return fmt.Errorf("nil mint")
	}
	return v.putRLP(prefixed(mintPrefix, mint.Address), mint)
}

func (v view) HoldingGet(addr crypto.Address) (*token.Holding, bool, error) {
	h := new(token.Holding)
	ok, err := v.getRLP(prefixed(holdingPrefix, addr), h)
	if !ok || err != nil {
		return nil, false, err
	}
	return h, true, nil
}

func (v view) HoldingPut(addr crypto.Address, h *token.Holding) error {
	if h == nil {
		return fmt.Errorf("nil holding")
	}
	return v.putRLP(prefixed(holdingPrefix, addr), h)
}

func (v view) HoldingDelete(addr crypto.Address) error {
	return v.kv.del(prefixed(holdingPrefix, addr))
}

func (v view) NativeBalance(addr crypto.Address) (uint64, error) {
	var balance uint64
	ok, err := v.getRLP(prefixed(nativePrefix, addr), &balance)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return balance, nil
}

func (v view) SetNativeBalance(addr crypto.Address, amount uint64) error {
	return v.putRLP(prefixed(nativePrefix, addr), amount)
}

func (v view) RecordGet(addr crypto.Address) (*escrow.Record, bool, error) {
	rec := new(escrow.Record)
	ok, err := v.getRLP(prefixed(recordPrefix, addr), rec)
	if !ok || err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (v view) RecordPut(addr crypto.Address, rec *escrow.Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	return v.putRLP(prefixed(recordPrefix, addr), rec)
}

func (v view) RecordDelete(addr crypto.Address) error {
	return v.kv.del(prefixed(recordPrefix, addr))
}
