// Package keyring derives EVM accounts from a BIP-39 secret.
package keyring

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pandodao/beanpay/core"
	"github.com/tyler-smith/go-bip39"
)

// m/44'/60'/0'/0/{index}
const pathFormat = "m/44'/60'/0'/0/%d"

var basePath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
}

type Key struct {
	Index   uint32
	Path    string
	Address common.Address

	private *ecdsa.PrivateKey
}

func (k *Key) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), k.private)
}

// NewMnemonic returns a fresh 12 word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}

	return bip39.NewMnemonic(entropy)
}

func normalize(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

func masterKey(mnemonic string) (*hdkeychain.ExtendedKey, error) {
	mnemonic = normalize(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, core.ErrInvalidSecret
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidSecret, err)
	}

	return master, nil
}

func accountParent(master *hdkeychain.ExtendedKey) (*hdkeychain.ExtendedKey, error) {
	key := master
	for _, i := range basePath {
		child, err := key.Derive(i)
		if err != nil {
			return nil, err
		}

		key = child
	}

	return key, nil
}

func deriveChild(parent *hdkeychain.ExtendedKey, index uint32) (*Key, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("account index %d out of range", index)
	}

	child, err := parent.Derive(index)
	if err != nil {
		return nil, err
	}

	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}

	private := priv.ToECDSA()
	return &Key{
		Index:   index,
		Path:    fmt.Sprintf(pathFormat, index),
		Address: crypto.PubkeyToAddress(private.PublicKey),
		private: private,
	}, nil
}

// Derive is pure: the same mnemonic and index always yield the same key.
func Derive(mnemonic string, index uint32) (*Key, error) {
	master, err := masterKey(mnemonic)
	if err != nil {
		return nil, err
	}

	parent, err := accountParent(master)
	if err != nil {
		return nil, err
	}

	return deriveChild(parent, index)
}

// Keyring memoizes keys derived from one mnemonic.
type Keyring struct {
	parent *hdkeychain.ExtendedKey

	mux  sync.Mutex
	keys map[uint32]*Key
}

func New(mnemonic string) (*Keyring, error) {
	master, err := masterKey(mnemonic)
	if err != nil {
		return nil, err
	}

	parent, err := accountParent(master)
	if err != nil {
		return nil, err
	}

	return &Keyring{
		parent: parent,
		keys:   map[uint32]*Key{},
	}, nil
}

func (r *Keyring) Key(index uint32) (*Key, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if k, ok := r.keys[index]; ok {
		return k, nil
	}

	k, err := deriveChild(r.parent, index)
	if err != nil {
		return nil, err
	}

	r.keys[index] = k
	return k, nil
}
