// Package cryptox holds the password hasher and the digest helpers used for
// refresh-token secrets.
package cryptox

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"

	"github.com/fastid/fastid/internal/common"
)

// Params is one argon2id cost profile. MemoryKiB is in kibibytes.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   uint32
}

// RFC 9106 section 4 recommendations.
var (
	// ProfileHigh is the first recommended option: 2 GiB, one pass.
	ProfileHigh = Params{Time: 1, MemoryKiB: 2 * 1024 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}
	// ProfileLow is the second recommended option for memory-constrained hosts.
	ProfileLow = Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}
)

const argonVersion = argon2.Version

// Hasher produces and verifies PHC-encoded argon2id hashes. Concurrent
// computations share a memory budget of workers times the configured cost,
// so a burst of sign-ins cannot exhaust host memory; waiting callers give up
// when their context is done.
type Hasher struct {
	params   Params
	workers  int64
	capacity int64
	sem      *semaphore.Weighted
}

// NewHasher builds a Hasher for the named profile ("high" or "low").
// With workers <= 0 the bound is derived from memoryBudgetMB divided by the
// profile's memory cost, never less than one.
func NewHasher(profile string, workers, memoryBudgetMB int) (*Hasher, error) {
	var p Params
	switch strings.ToLower(profile) {
	case "high":
		p = ProfileHigh
	case "low", "":
		p = ProfileLow
	default:
		return nil, fmt.Errorf("unknown hasher profile %q", profile)
	}

	if workers <= 0 {
		workers = memoryBudgetMB * 1024 / int(p.MemoryKiB)
	}
	return NewHasherWithParams(p, workers), nil
}

// NewHasherWithParams builds a Hasher with explicit parameters.
func NewHasherWithParams(p Params, workers int) *Hasher {
	if workers < 1 {
		workers = 1
	}
	capacity := int64(workers) * int64(max(p.MemoryKiB, 1))
	return &Hasher{
		params:   p,
		workers:  int64(workers),
		capacity: capacity,
		sem:      semaphore.NewWeighted(capacity),
	}
}

// Workers returns the concurrency bound.
func (h *Hasher) Workers() int { return int(h.workers) }

// Hash returns "$argon2id$v=19$m=<kib>,t=<time>,p=<threads>$<salt>$<key>"
// with unpadded standard base64 for salt and key.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := common.GenerateRandByteArray(int(h.params.SaltLen))

	key, err := h.derive(ctx, []byte(password), salt, h.params)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonVersion, h.params.MemoryKiB, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A malformed hash simply
// does not match; an error is returned only when the computation itself
// could not run (context done or ErrHashingFailure).
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	p, salt, want, ok := decode(encoded)
	if !ok {
		return false, nil
	}

	got, err := h.derive(ctx, []byte(password), salt, p)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// weight is the share of the budget a computation with p holds. Stored
// hashes may carry a larger memory cost than the current profile; such a
// computation takes the whole budget and runs alone.
func (h *Hasher) weight(p Params) int64 {
	return min(max(int64(p.MemoryKiB), 1), h.capacity)
}

func (h *Hasher) derive(ctx context.Context, password, salt []byte, p Params) (key []byte, err error) {
	w := h.weight(p)
	if err := h.sem.Acquire(ctx, w); err != nil {
		return nil, err
	}
	defer h.sem.Release(w)

	defer func() {
		if r := recover(); r != nil {
			key = nil
			err = fmt.Errorf("%w: %v", common.ErrHashingFailure, r)
		}
	}()

	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen), nil
}

func decode(encoded string) (p Params, salt, key []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, false
	}
	if parts[2] != "v="+strconv.Itoa(argonVersion) {
		return p, nil, nil, false
	}

	var m, t uint32
	var threads uint8
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &threads); err != nil || n != 3 {
		return p, nil, nil, false
	}
	if m == 0 || t == 0 || threads == 0 {
		return p, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, false
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, false
	}

	p = Params{Time: t, MemoryKiB: m, Threads: threads, KeyLen: uint32(len(key)), SaltLen: uint32(len(salt))}
	return p, salt, key, true
}
