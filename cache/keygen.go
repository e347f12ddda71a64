package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/penlight/vitalsum/models"
)

// KeyGenerator derives deterministic cache keys using SHA-256 hashing
// over the normalized, semantically relevant subset of a request.
// Two requests that would produce an equivalent result hash to the
// same key, and keys are stable across process restarts.
type KeyGenerator struct {
	// Prefix is prepended to all generated keys.
	Prefix string
}

// NewKeyGenerator creates a new KeyGenerator with optional prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{Prefix: prefix}
}

// Generate creates a cache key from the request. Vital signs are
// bucketed before hashing so that insignificant sensor jitter does not
// fragment the cache; the environment snapshot is excluded for the
// same reason.
func (g *KeyGenerator) Generate(req models.AnalysisRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("cat:%s", req.Category))
	sb.WriteString(fmt.Sprintf("|sleep:%d", req.Snapshot.SleepBucket()))
	sb.WriteString(fmt.Sprintf("|steps:%d", req.Snapshot.StepsBucket()))
	sb.WriteString(fmt.Sprintf("|active:%d", req.Snapshot.ActiveBucket()))
	sb.WriteString(fmt.Sprintf("|hr:%d", req.Snapshot.HeartRateBucket()))
	sb.WriteString(fmt.Sprintf("|hrv:%d", req.Snapshot.HRVBucket()))
	sb.WriteString(fmt.Sprintf("|age:%d", req.Profile.AgeBucket()))
	for _, tag := range req.Profile.GoalTags {
		sb.WriteString(fmt.Sprintf("|goal:%s", tag))
	}

	hash := sha256.Sum256([]byte(sb.String()))
	hashHex := hex.EncodeToString(hash[:])

	if g.Prefix != "" {
		return g.Prefix + ":" + hashHex
	}
	return hashHex
}
