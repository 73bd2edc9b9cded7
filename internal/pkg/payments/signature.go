package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// SignatureHeader is the processor's signature header name.
const SignatureHeader = "Stripe-Signature"

const signatureScheme = "v1"

// VerifySignature authenticates a raw webhook body against its signature
// header. The signed payload is "<timestamp>.<body>" and the signature is
// HMAC-SHA256 under the shared endpoint secret. Requests older (or newer)
// than the tolerance window fail even with a valid MAC.
//
// A non-nil return always carries ErrEventUnverifiable; callers must reject
// the request without recording anything.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return errs.Mark(errs.New("webhook secret not configured"), errs.ErrEventUnverifiable)
	}

	timestamp, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return errs.Mark(err, errs.ErrEventUnverifiable)
	}

	sent := time.Unix(timestamp, 0)
	if diff := now.Sub(sent); diff > tolerance || diff < -tolerance {
		return errs.Mark(errs.Newf("signature timestamp outside tolerance: %s", diff), errs.ErrEventUnverifiable)
	}

	signedPayload := make([]byte, 0, len(payload)+20)
	signedPayload = strconv.AppendInt(signedPayload, timestamp, 10)
	signedPayload = append(signedPayload, '.')
	signedPayload = append(signedPayload, payload...)

	for _, sig := range sigs {
		if verifyHMAC(signedPayload, sig, []byte(secret), sha256.New) {
			return nil
		}
	}
	return errs.Mark(errs.New("no matching signature"), errs.ErrEventUnverifiable)
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1=<hex>...]" into its
// timestamp and candidate signatures. Unknown schemes are skipped so secret
// rotation with multiple signatures keeps working.
func parseSignatureHeader(header string) (int64, [][]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, errs.New("signature header missing")
	}

	var timestamp int64 = -1
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, errs.Wrap(err, "parse signature timestamp")
			}
			timestamp = ts
		case signatureScheme:
			sig, err := hex.DecodeString(strings.ToLower(value))
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}

	if timestamp < 0 {
		return 0, nil, errs.New("signature header has no timestamp")
	}
	if len(sigs) == 0 {
		return 0, nil, errs.New("signature header has no v1 signature")
	}
	return timestamp, sigs, nil
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
