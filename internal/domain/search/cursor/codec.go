package cursor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/recallwatch/recallsearch/internal/domain"
)

// Codec encodes, signs and verifies pagination cursors.
// Tokens are base64url(payload) + "." + base64url(HMAC-SHA256(payload)).
type Codec struct {
	secret []byte
}

// NewCodec creates a cursor codec with the given signing secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("cursor secret is required")
	}
	return &Codec{secret: secret}, nil
}

// payload is the wire representation of State.
// AF carries the [score, dateMillis, id] continuation triple.
type payload struct {
	V   int    `json:"v"`
	FP  string `json:"fp"`
	AO  int64  `json:"as_of"`
	PS  int    `json:"ps"`
	AF  []any  `json:"after,omitempty"`
	Exp int64  `json:"exp"`
}

// Encode serializes and signs a cursor state.
func (c *Codec) Encode(st State) (string, error) {
	p := payload{
		V:   st.Version,
		FP:  st.Fingerprint,
		AO:  st.AsOf.UnixMilli(),
		PS:  st.PageSize,
		Exp: st.ExpiresAt.UnixMilli(),
	}
	if st.After != nil {
		p.AF = []any{st.After.Score, st.After.Date.UnixMilli(), st.After.ID}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal cursor payload: %w", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(raw) + "." + enc.EncodeToString(c.sign(raw)), nil
}

// Decode verifies and deserializes a cursor token.
// Fails closed: any altered byte yields ErrInvalidCursor. A valid signature
// is still rejected when the embedded expiry has passed (ErrCursorExpired)
// or when the fingerprint differs from the caller's current query
// (ErrCursorFilterMismatch).
func (c *Codec) Decode(token, expectedFingerprint string, now time.Time) (State, error) {
	payloadPart, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return State{}, fmt.Errorf("%w: missing signature", domain.ErrInvalidCursor)
	}

	enc := base64.RawURLEncoding
	raw, err := enc.DecodeString(payloadPart)
	if err != nil {
		return State{}, fmt.Errorf("%w: undecodable payload", domain.ErrInvalidCursor)
	}
	sig, err := enc.DecodeString(sigPart)
	if err != nil {
		return State{}, fmt.Errorf("%w: undecodable signature", domain.ErrInvalidCursor)
	}
	if !hmac.Equal(sig, c.sign(raw)) {
		return State{}, fmt.Errorf("%w: signature mismatch", domain.ErrInvalidCursor)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return State{}, fmt.Errorf("%w: malformed payload", domain.ErrInvalidCursor)
	}
	if p.V != Version {
		return State{}, fmt.Errorf("%w: unsupported version %d", domain.ErrInvalidCursor, p.V)
	}
	if !now.Before(time.UnixMilli(p.Exp)) {
		return State{}, domain.ErrCursorExpired
	}
	if p.FP != expectedFingerprint {
		return State{}, domain.ErrCursorFilterMismatch
	}

	st := State{
		Version:     p.V,
		Fingerprint: p.FP,
		AsOf:        time.UnixMilli(p.AO).UTC(),
		PageSize:    p.PS,
		ExpiresAt:   time.UnixMilli(p.Exp).UTC(),
	}
	if p.AF != nil {
		after, err := afterFromWire(p.AF)
		if err != nil {
			return State{}, fmt.Errorf("%w: %s", domain.ErrInvalidCursor, err)
		}
		st.After = after
	}
	return st, nil
}

func (c *Codec) sign(raw []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(raw)
	return mac.Sum(nil)
}

// afterFromWire parses the [score, dateMillis, id] triple.
// JSON numbers arrive as float64; date millis are exact below 2^53.
func afterFromWire(af []any) (*Key, error) {
	if len(af) != 3 {
		return nil, fmt.Errorf("after key must have 3 elements, got %d", len(af))
	}
	score, ok := af[0].(float64)
	if !ok {
		return nil, fmt.Errorf("after score must be a number")
	}
	dateMs, ok := af[1].(float64)
	if !ok {
		return nil, fmt.Errorf("after date must be a number")
	}
	id, ok := af[2].(string)
	if !ok {
		return nil, fmt.Errorf("after id must be a string")
	}
	return &Key{Score: score, Date: time.UnixMilli(int64(dateMs)).UTC(), ID: id}, nil
}
