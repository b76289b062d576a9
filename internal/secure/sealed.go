package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrWiped is returned by Reveal after Wipe has been called.
var ErrWiped = errors.New("sealed value has been wiped")

// Sealed holds a secret encrypted at rest in memory.
type Sealed struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
	wiped   bool
}

// Seal moves secret into an enclave. The source slice is zeroed.
func Seal(secret []byte) *Sealed {
	// memguard returns a nil enclave for empty input; Reveal treats that as "".
	return &Sealed{enclave: memguard.NewEnclave(secret)}
}

// SealString seals a copy of s.
func SealString(s string) *Sealed {
	return Seal([]byte(s))
}

// Reveal decrypts the secret and returns a copy of it.
func (s *Sealed) Reveal() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wiped {
		return "", ErrWiped
	}
	if s.enclave == nil {
		return "", nil
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	return string(locked.Bytes()), nil
}

// Wipe drops the enclave. It is safe to call more than once.
func (s *Sealed) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.wiped = true
}

// Purge destroys all memguard state. Call it once, on the way out of main.
func Purge() {
	memguard.Purge()
}
