// Package wallet manages the local signing wallet file. The file is
// the only state this agent persists: a generated address and private
// key, written once with restrictive permissions.
package wallet

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
)

const DefaultPath = "state/wallet.local.json"

// File mirrors the on-disk wallet JSON.
type File struct {
	Mode          string `json:"mode"`
	Address       string `json:"address"`
	PrivateKeyHex string `json:"private_key_hex"`
	CreatedAt     string `json:"created_at"`
}

// Create generates a fresh secp256k1 key and writes the wallet file
// with 0600 permissions. Parent directories are created as needed.
func Create(path string) (File, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return File{}, faults.ConfigWrap(err, "generate wallet key: %v", err)
	}
	w := File{
		Mode:          "local",
		Address:       crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKeyHex: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return File{}, faults.ConfigWrap(err, "create wallet directory %s: %v", dir, err)
		}
	}
	encoded, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return File{}, faults.ConfigWrap(err, "encode wallet file: %v", err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o600); err != nil {
		return File{}, faults.ConfigWrap(err, "write wallet file %s: %v", path, err)
	}
	return w, nil
}

// Load reads an existing wallet file and checks the required fields.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, faults.Configf("Local wallet file not found: %s. Run with --init-wallet first.", path)
		}
		return File{}, faults.ConfigWrap(err, "read wallet file %s: %v", path, err)
	}
	var w File
	if err := json.Unmarshal(raw, &w); err != nil {
		return File{}, faults.ConfigWrap(err, "Local wallet file must contain a JSON object: %v", err)
	}
	if w.Address == "" || w.PrivateKeyHex == "" {
		return File{}, faults.Configf("Local wallet file is missing required fields.")
	}
	return w, nil
}
