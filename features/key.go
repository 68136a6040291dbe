package features

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Params are the parameters a dataset was derived with. They must be JSON
// encodable; map keys are encoded in sorted order so equal params always
// produce equal keys.
type Params map[string]any

// ContentKey derives the cache key of a dataset from its schema, parameters
// and version. Any change to one of the three yields a different key.
func ContentKey(schema []Field, params Params, version string) (string, error) {
	if params == nil {
		params = Params{}
	}
	pj, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return contentKey(schema, pj, version), nil
}

// contentKey hashes already-canonical params JSON, as kept in the sidecar.
func contentKey(schema []Field, paramsJSON []byte, version string) string {
	h := sha256.New()
	h.Write([]byte(SchemaFingerprint(schema)))
	h.Write([]byte{0})
	h.Write(paramsJSON)
	h.Write([]byte{0})
	h.Write([]byte(version))
	return hex.EncodeToString(h.Sum(nil))
}
