package steps

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// OutputKey derives the deterministic object-store key for a step's
// canonical output. The digest covers input key, step name, and canonical
// params, so re-running a step after a crash lands on the same key instead
// of orphaning a previous attempt. This determinism is what makes crash
// resume safe.
func OutputKey(jobID, step, inputKey string, params map[string]string, ext string) string {
	return fmt.Sprintf("outputs/%s/%s/%s%s", jobID, step, digest(inputKey, step, params), ext)
}

// OutputPrefix is OutputKey for steps whose artifact is a directory tree
// (HLS): the returned prefix holds the playlist and its segments.
func OutputPrefix(jobID, step, inputKey string, params map[string]string) string {
	return fmt.Sprintf("outputs/%s/%s/%s", jobID, step, digest(inputKey, step, params))
}

func digest(inputKey, step string, params map[string]string) string {
	h := sha256.New()
	h.Write([]byte(inputKey))
	h.Write([]byte{0})
	h.Write([]byte(step))
	h.Write([]byte{0})
	h.Write([]byte(canonicalParams(params)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// canonicalParams renders params in sorted key order so map iteration order
// can never change the digest.
func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
