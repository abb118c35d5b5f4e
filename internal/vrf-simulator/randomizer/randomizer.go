package randomizer

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"sync"
)

// Randomizer deriva palavras aleatórias de forma determinística e auditável:
// HMAC-SHA512 do requestId + nonce com a seed do servidor. O mesmo requestId
// nunca produz a mesma palavra duas vezes porque o nonce avança a cada pedido.
type Randomizer struct {
	serverSeed string

	mu    sync.Mutex
	nonce uint64
}

func New(serverSeed string) *Randomizer {
	return &Randomizer{serverSeed: serverSeed}
}

// Word deriva a palavra aleatória para um pedido
func (r *Randomizer) Word(requestID string) uint64 {
	r.mu.Lock()
	nonce := r.nonce
	r.nonce++
	r.mu.Unlock()

	return r.WordAt(requestID, nonce)
}

// WordAt deriva a palavra para um (requestId, nonce) específico, o que permite
// a um auditor reproduzir qualquer resultado a partir da seed revelada
func (r *Randomizer) WordAt(requestID string, nonce uint64) uint64 {
	mac := hmac.New(sha512.New, []byte(r.serverSeed))
	mac.Write([]byte(fmt.Sprintf("%s:%d", requestID, nonce)))
	sum := mac.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
